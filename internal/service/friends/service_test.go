package friends

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/linwc/talkwire-server/internal/proto"
	"github.com/linwc/talkwire-server/internal/store"
	"github.com/linwc/talkwire-server/internal/store/sqlite"
)

type recordingNotifier struct {
	targets []int64
	events  []proto.FriendRequestEvent
}

func (n *recordingNotifier) Notify(targetID int64, payload any) bool {
	n.targets = append(n.targets, targetID)
	if event, ok := payload.(proto.FriendRequestEvent); ok {
		n.events = append(n.events, event)
	}
	return true
}

func newTestService(t *testing.T) (*Service, store.Store, *recordingNotifier) {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	notifier := &recordingNotifier{}
	logger := zerolog.Nop()
	return New(st, notifier, &logger), st, notifier
}

func mustCreateUser(t *testing.T, st store.Store, username string) *store.User {
	t.Helper()
	user, err := st.CreateUser(context.Background(), username, "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func TestSendRequestNotifiesAddressee(t *testing.T) {
	svc, st, notifier := newTestService(t)
	ctx := context.Background()

	alice := mustCreateUser(t, st, "alice")
	bob := mustCreateUser(t, st, "bob")

	request, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if request.Status != store.FriendStatusPending {
		t.Fatalf("unexpected status: %s", request.Status)
	}

	if len(notifier.events) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.events))
	}
	event := notifier.events[0]
	if notifier.targets[0] != bob.ID {
		t.Fatalf("notification sent to %d, want %d", notifier.targets[0], bob.ID)
	}
	if event.Type != proto.EventFriendRequest || event.RequestID != request.ID || event.SenderUsername != "alice" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestSendRequestValidation(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	alice := mustCreateUser(t, st, "alice")
	bob := mustCreateUser(t, st, "bob")

	if _, err := svc.SendRequest(ctx, alice.ID, alice.ID); !errors.Is(err, ErrCannotFriendSelf) {
		t.Fatalf("self request: %v", err)
	}
	if _, err := svc.SendRequest(ctx, alice.ID, 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown addressee: %v", err)
	}

	if _, err := svc.SendRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("send request: %v", err)
	}
	if _, err := svc.SendRequest(ctx, alice.ID, bob.ID); !errors.Is(err, ErrRequestAlreadyExists) {
		t.Fatalf("duplicate request: %v", err)
	}
	// The reverse direction collides with the pending request too.
	if _, err := svc.SendRequest(ctx, bob.ID, alice.ID); !errors.Is(err, ErrRequestAlreadyExists) {
		t.Fatalf("reverse duplicate request: %v", err)
	}
}

func TestAcceptRequest(t *testing.T) {
	svc, st, notifier := newTestService(t)
	ctx := context.Background()

	alice := mustCreateUser(t, st, "alice")
	bob := mustCreateUser(t, st, "bob")

	request, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}

	if err := svc.AcceptRequest(ctx, bob.ID, request.ID); err != nil {
		t.Fatalf("accept request: %v", err)
	}

	friendsOfAlice, err := svc.ListFriends(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list friends: %v", err)
	}
	if len(friendsOfAlice) != 1 || friendsOfAlice[0].Status != store.FriendStatusAccepted {
		t.Fatalf("unexpected friends: %+v", friendsOfAlice)
	}

	last := notifier.events[len(notifier.events)-1]
	if last.Type != proto.EventFriendRequestAccepted || last.SenderID != bob.ID {
		t.Fatalf("unexpected accept notification: %+v", last)
	}
	if notifier.targets[len(notifier.targets)-1] != alice.ID {
		t.Fatal("accept notification not addressed to the requester")
	}

	if _, err := svc.SendRequest(ctx, alice.ID, bob.ID); !errors.Is(err, ErrAlreadyFriends) {
		t.Fatalf("request after acceptance: %v", err)
	}
}

func TestAcceptRequestOnlyForAddressee(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	alice := mustCreateUser(t, st, "alice")
	bob := mustCreateUser(t, st, "bob")
	carol := mustCreateUser(t, st, "carol")

	request, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}

	// Neither the sender nor a third party can accept it.
	if err := svc.AcceptRequest(ctx, alice.ID, request.ID); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("sender accept: %v", err)
	}
	if err := svc.AcceptRequest(ctx, carol.ID, request.ID); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("third-party accept: %v", err)
	}
	if err := svc.AcceptRequest(ctx, bob.ID, 999); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("unknown request: %v", err)
	}
}

func TestRejectRequestRemovesRecord(t *testing.T) {
	svc, st, notifier := newTestService(t)
	ctx := context.Background()

	alice := mustCreateUser(t, st, "alice")
	bob := mustCreateUser(t, st, "bob")

	request, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}

	if err := svc.RejectRequest(ctx, bob.ID, request.ID); err != nil {
		t.Fatalf("reject request: %v", err)
	}

	last := notifier.events[len(notifier.events)-1]
	if last.Type != proto.EventFriendRequestRejected {
		t.Fatalf("unexpected reject notification: %+v", last)
	}

	// The slate is clean: a new request can be sent.
	if _, err := svc.SendRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("request after rejection: %v", err)
	}
}

func TestListPendingRequestsIncomingOnly(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	alice := mustCreateUser(t, st, "alice")
	bob := mustCreateUser(t, st, "bob")
	carol := mustCreateUser(t, st, "carol")

	if _, err := svc.SendRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("send request: %v", err)
	}
	if _, err := svc.SendRequest(ctx, bob.ID, carol.ID); err != nil {
		t.Fatalf("send request: %v", err)
	}

	incoming, err := svc.ListPendingRequests(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(incoming) != 1 || incoming[0].UserID != alice.ID {
		t.Fatalf("unexpected incoming requests: %+v", incoming)
	}
}
