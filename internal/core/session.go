package core

import "sync"

// CloseReason explains why a session was shut down.
type CloseReason int

const (
	// CloseNormal is a regular teardown (transport closed or unregistered).
	CloseNormal CloseReason = iota
	// CloseReplaced means a newer session for the same user superseded this one.
	CloseReplaced
)

// Session is one live connection bound to an authenticated user.
// The transport write loop drains Outbound; everything else talks to the
// session through TrySend.
type Session struct {
	UserID int64
	ID     string

	out chan []byte

	mu     sync.Mutex
	closed bool
	reason CloseReason
	done   chan struct{}
}

// NewSession constructs a session for the given user.
func NewSession(userID int64, id string) *Session {
	return &Session{
		UserID: userID,
		ID:     id,
		out:    make(chan []byte, 32),
		done:   make(chan struct{}),
	}
}

// Outbound returns the channel the transport write loop drains.
func (s *Session) Outbound() <-chan []byte { return s.out }

// Done is closed when the session is shut down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Reason reports why the session was closed. Meaningful once Done is closed.
func (s *Session) Reason() CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// TrySend queues a frame without blocking. False means the session is closed
// or its buffer is full; callers treat either as the peer being offline.
func (s *Session) TrySend(frame []byte) bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}

	select {
	case s.out <- frame:
		return true
	default:
		return false
	}
}

// Close marks the session dead and wakes its write loop. Idempotent; the
// first reason wins.
func (s *Session) Close(reason CloseReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.reason = reason
	close(s.done)
}
