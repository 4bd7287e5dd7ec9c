package core

import "errors"

var (
	// ErrDecode marks an inbound frame that is not valid JSON. Such frames
	// are dropped without notifying the peer.
	ErrDecode = errors.New("undecodable frame")

	// ErrInvalidFrame marks a frame that decodes but fails semantic
	// validation: empty content, or neither or both of receiverId/groupId
	// set. Also dropped silently.
	ErrInvalidFrame = errors.New("invalid chat frame")
)

// IsSilentDrop reports whether a routing error is frame-scoped and should be
// swallowed without any response to the peer.
func IsSilentDrop(err error) bool {
	return errors.Is(err, ErrDecode) || errors.Is(err, ErrInvalidFrame)
}
