package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/linwc/talkwire-server/internal/proto"
	"github.com/linwc/talkwire-server/internal/store"
)

// Common errors for friend operations.
var (
	ErrCannotFriendSelf     = errors.New("cannot send friend request to yourself")
	ErrAlreadyFriends       = errors.New("already friends")
	ErrRequestAlreadyExists = errors.New("friend request already exists")
	ErrRequestNotFound      = errors.New("friend request not found")
	ErrUserNotFound         = errors.New("user not found")
)

// Notifier delivers an event to a user's live session, if any.
type Notifier interface {
	Notify(targetID int64, payload any) bool
}

// Service provides friend request business logic. Every durable state change
// is followed by a best-effort live notification; the delivery outcome never
// fails the operation.
type Service struct {
	store    store.Store
	notifier Notifier
	log      *zerolog.Logger
}

// New creates a new friends service.
func New(st store.Store, notifier Notifier, logger *zerolog.Logger) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		log:      logger,
	}
}

// SendRequest sends a friend request from one user to another and notifies
// the addressee if they are online.
func (s *Service) SendRequest(ctx context.Context, fromUserID, toUserID int64) (*store.Friend, error) {
	if fromUserID == toUserID {
		return nil, ErrCannotFriendSelf
	}

	if _, err := s.store.GetUserByID(ctx, toUserID); err != nil {
		return nil, ErrUserNotFound
	}

	existing, err := s.store.GetFriendship(ctx, fromUserID, toUserID)
	if err == nil {
		if existing.Status == store.FriendStatusAccepted {
			return nil, ErrAlreadyFriends
		}
		return nil, ErrRequestAlreadyExists
	}

	request, err := s.store.CreateFriendRequest(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, fmt.Errorf("create friend request: %w", err)
	}

	s.notify(ctx, toUserID, fromUserID, proto.EventFriendRequest, request.ID)
	return request, nil
}

// AcceptRequest accepts a pending friend request addressed to userID and
// notifies the requester.
func (s *Service) AcceptRequest(ctx context.Context, userID, requestID int64) error {
	request, err := s.pendingRequestFor(ctx, userID, requestID)
	if err != nil {
		return err
	}

	if err := s.store.UpdateFriendStatus(ctx, request.ID, store.FriendStatusAccepted); err != nil {
		return fmt.Errorf("accept request: %w", err)
	}

	s.notify(ctx, request.UserID, userID, proto.EventFriendRequestAccepted, 0)
	return nil
}

// RejectRequest rejects a pending friend request addressed to userID,
// removes it, and notifies the requester.
func (s *Service) RejectRequest(ctx context.Context, userID, requestID int64) error {
	request, err := s.pendingRequestFor(ctx, userID, requestID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteFriend(ctx, request.ID); err != nil {
		return fmt.Errorf("reject request: %w", err)
	}

	s.notify(ctx, request.UserID, userID, proto.EventFriendRequestRejected, 0)
	return nil
}

// ListFriends returns all accepted friendships for a user.
func (s *Service) ListFriends(ctx context.Context, userID int64) ([]*store.Friend, error) {
	status := store.FriendStatusAccepted
	accepted, err := s.store.ListFriends(ctx, userID, &status)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return accepted, nil
}

// ListPendingRequests returns incoming pending friend requests for a user.
func (s *Service) ListPendingRequests(ctx context.Context, userID int64) ([]*store.Friend, error) {
	status := store.FriendStatusPending
	all, err := s.store.ListFriends(ctx, userID, &status)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}

	// Only requests addressed to the user, not ones they sent.
	var incoming []*store.Friend
	for _, f := range all {
		if f.FriendID == userID {
			incoming = append(incoming, f)
		}
	}

	return incoming, nil
}

// pendingRequestFor loads requestID and checks it is a pending request
// addressed to userID. Anything else looks like a missing request to the
// caller.
func (s *Service) pendingRequestFor(ctx context.Context, userID, requestID int64) (*store.Friend, error) {
	request, err := s.store.GetFriendRequestByID(ctx, requestID)
	if err != nil {
		return nil, ErrRequestNotFound
	}
	if request.Status != store.FriendStatusPending || request.FriendID != userID {
		return nil, ErrRequestNotFound
	}
	return request, nil
}

func (s *Service) notify(ctx context.Context, targetID, actorID int64, eventType string, requestID int64) {
	actor, err := s.store.GetUserByID(ctx, actorID)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", actorID).Msg("resolve actor for notification")
		return
	}

	delivered := s.notifier.Notify(targetID, proto.FriendRequestEvent{
		Type:           eventType,
		RequestID:      requestID,
		SenderID:       actorID,
		SenderUsername: actor.Username,
	})
	s.log.Debug().
		Str("event", eventType).
		Int64("target_id", targetID).
		Bool("delivered", delivered).
		Msg("friend notification")
}
