package messages

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/linwc/talkwire-server/internal/proto"
	"github.com/linwc/talkwire-server/internal/store"
)

// ErrNotGroupMember is returned when a user reads history of a group they
// don't belong to.
var ErrNotGroupMember = errors.New("not a group member")

// Notifier delivers an event to a user's live session, if any.
type Notifier interface {
	Notify(targetID int64, payload any) bool
}

// Service provides message history reads and read receipts.
type Service struct {
	store    store.Store
	notifier Notifier
	log      *zerolog.Logger
}

// New creates a new messages service.
func New(st store.Store, notifier Notifier, logger *zerolog.Logger) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		log:      logger,
	}
}

// ListMessages returns all direct messages the user sent or received.
func (s *Service) ListMessages(ctx context.Context, userID int64) ([]*store.Message, error) {
	msgs, err := s.store.ListMessages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// ListConversation returns the direct message history between two users.
func (s *Service) ListConversation(ctx context.Context, userID, friendID int64) ([]*store.Message, error) {
	msgs, err := s.store.ListConversation(ctx, userID, friendID)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	return msgs, nil
}

// ListGroupMessages returns a group's message history. The reader must be a
// member of the group.
func (s *Service) ListGroupMessages(ctx context.Context, userID, groupID int64) ([]*store.Message, error) {
	member, err := s.store.IsGroupMember(ctx, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("check group membership: %w", err)
	}
	if !member {
		return nil, ErrNotGroupMember
	}

	msgs, err := s.store.ListGroupMessages(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group messages: %w", err)
	}
	return msgs, nil
}

// MarkConversationRead marks every unread message from friendID to readerID
// as read and sends friendID a read receipt for the messages that actually
// transitioned. The flag transition is one-way and idempotent: a repeated
// call marks nothing and emits no receipt.
func (s *Service) MarkConversationRead(ctx context.Context, readerID, friendID int64) ([]int64, error) {
	ids, err := s.store.MarkConversationRead(ctx, readerID, friendID)
	if err != nil {
		return nil, fmt.Errorf("mark conversation read: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	delivered := s.notifier.Notify(friendID, proto.ReadReceiptEvent{
		Type:           proto.EventReadReceipt,
		ReadMessageIDs: ids,
		ReaderID:       readerID,
	})
	s.log.Debug().
		Int64("reader_id", readerID).
		Int64("friend_id", friendID).
		Int("message_count", len(ids)).
		Bool("delivered", delivered).
		Msg("read receipt")

	return ids, nil
}
