package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/linwc/talkwire-server/internal/proto"
	"github.com/linwc/talkwire-server/internal/store"
)

// MessageSaver is the persistence port the router appends messages through.
type MessageSaver interface {
	SaveMessage(ctx context.Context, msg *store.Message) error
}

// GroupRoster resolves the member set of a group. The router reads a fresh
// snapshot per dispatch and never caches it.
type GroupRoster interface {
	ListGroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error)
}

// RouteResult describes the outcome of routing one inbound frame.
type RouteResult struct {
	// Keepalive is true when the frame was the keepalive sentinel; nothing
	// was persisted or dispatched and the caller should answer with a pong.
	Keepalive bool
	// Message is the persisted message for a valid chat frame.
	Message *store.Message
	// Delivered is the number of live sessions the message was written to.
	Delivered int
}

// Router validates inbound chat frames, persists them, and fans them out to
// every recipient with a live session.
type Router struct {
	registry *Registry
	saver    MessageSaver
	roster   GroupRoster
	metrics  *Metrics
	log      *zerolog.Logger
}

// NewRouter builds a message router. metrics may be nil.
func NewRouter(registry *Registry, saver MessageSaver, roster GroupRoster, logger *zerolog.Logger, metrics *Metrics) *Router {
	return &Router{
		registry: registry,
		saver:    saver,
		roster:   roster,
		metrics:  metrics,
		log:      logger,
	}
}

// IsKeepalive reports whether a raw frame is the bare keepalive sentinel.
func IsKeepalive(raw []byte) bool {
	return string(bytes.TrimSpace(raw)) == proto.KeepalivePing
}

// Route processes one inbound frame from senderID. Keepalives short-circuit;
// malformed frames return ErrDecode or ErrInvalidFrame and must be dropped
// silently. For a valid chat frame the message is persisted first, then
// written to every recipient currently in the registry. Offline recipients
// are skipped; they catch up through message history. A failed write to one
// recipient never aborts delivery to the others.
func (r *Router) Route(ctx context.Context, senderID int64, raw []byte) (*RouteResult, error) {
	if IsKeepalive(raw) {
		return &RouteResult{Keepalive: true}, nil
	}

	var frame proto.ChatFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	hasReceiver := frame.ReceiverID != 0
	hasGroup := frame.GroupID != 0
	if frame.Content == "" || hasReceiver == hasGroup {
		return nil, ErrInvalidFrame
	}

	msg := &store.Message{
		SenderID: senderID,
		Content:  frame.Content,
	}

	kind := "direct"
	var recipients []int64
	if hasGroup {
		kind = "group"
		// The roster is authoritative; the sender is not added implicitly.
		ids, err := r.roster.ListGroupMemberIDs(ctx, frame.GroupID)
		if err != nil {
			return nil, fmt.Errorf("resolve group roster: %w", err)
		}
		recipients = ids
		groupID := frame.GroupID
		msg.GroupID = &groupID
	} else {
		// Direct messages echo back to the sender so their other view of
		// the conversation stays in sync.
		receiverID := frame.ReceiverID
		msg.ReceiverID = &receiverID
		recipients = []int64{receiverID, senderID}
	}

	// Persist before any dispatch so a live-delivered message is always
	// recoverable via history.
	if err := r.saver.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	payload, err := json.Marshal(outboundMessage(msg))
	if err != nil {
		return nil, fmt.Errorf("encode outbound message: %w", err)
	}

	delivered := 0
	seen := make(map[int64]struct{}, len(recipients))
	for _, userID := range recipients {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		sess := r.registry.Lookup(userID)
		if sess == nil {
			continue
		}
		if !sess.TrySend(payload) {
			r.log.Warn().
				Int64("user_id", userID).
				Str("session_id", sess.ID).
				Int64("message_id", msg.ID).
				Msg("dropping delivery to stalled session")
			go r.registry.Unregister(sess)
			continue
		}
		delivered++
	}

	r.metrics.RecordMessageRouted(kind, delivered)
	r.log.Debug().
		Int64("message_id", msg.ID).
		Int64("sender_id", senderID).
		Str("kind", kind).
		Int("delivered", delivered).
		Msg("message routed")

	return &RouteResult{Message: msg, Delivered: delivered}, nil
}

func outboundMessage(msg *store.Message) proto.MessageOut {
	out := proto.MessageOut{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Read:      msg.Read,
		CreatedAt: msg.CreatedAt,
	}
	if msg.ReceiverID != nil {
		out.ReceiverID = *msg.ReceiverID
	}
	if msg.GroupID != nil {
		out.GroupID = *msg.GroupID
	}
	return out
}
