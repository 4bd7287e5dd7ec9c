package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/linwc/talkwire-server/internal/proto"
	"github.com/linwc/talkwire-server/internal/store"
)

type fakeSaver struct {
	saved  []*store.Message
	nextID int64
	err    error
}

func (f *fakeSaver) SaveMessage(_ context.Context, msg *store.Message) error {
	if f.err != nil {
		return f.err
	}
	f.nextID++
	msg.ID = f.nextID
	msg.CreatedAt = time.Now()
	f.saved = append(f.saved, msg)
	return nil
}

type fakeRoster struct {
	members map[int64][]int64
	err     error
}

func (f *fakeRoster) ListGroupMemberIDs(_ context.Context, groupID int64) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.members[groupID], nil
}

func newTestRouter(t *testing.T) (*Router, *Registry, *fakeSaver, *fakeRoster) {
	t.Helper()
	registry := NewRegistry(testLogger(), nil)
	saver := &fakeSaver{}
	roster := &fakeRoster{members: make(map[int64][]int64)}
	router := NewRouter(registry, saver, roster, testLogger(), nil)
	return router, registry, saver, roster
}

func recvFrame(t *testing.T, s *Session) []byte {
	t.Helper()
	select {
	case frame := <-s.Outbound():
		return frame
	default:
		t.Fatalf("session %s has no queued frame", s.ID)
		return nil
	}
}

func assertNoFrame(t *testing.T, s *Session) {
	t.Helper()
	select {
	case frame := <-s.Outbound():
		t.Fatalf("session %s unexpectedly received: %s", s.ID, frame)
	default:
	}
}

func chatFrame(t *testing.T, frame proto.ChatFrame) []byte {
	t.Helper()
	raw, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return raw
}

func TestRouteKeepalive(t *testing.T) {
	router, _, saver, _ := newTestRouter(t)

	res, err := router.Route(context.Background(), 1, []byte("ping"))
	if err != nil {
		t.Fatalf("route keepalive: %v", err)
	}
	if !res.Keepalive {
		t.Fatal("expected keepalive result")
	}
	if len(saver.saved) != 0 {
		t.Fatalf("keepalive was persisted: %d messages", len(saver.saved))
	}
}

func TestRouteMalformedFrame(t *testing.T) {
	router, _, saver, _ := newTestRouter(t)

	_, err := router.Route(context.Background(), 1, []byte("{not json"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if !IsSilentDrop(err) {
		t.Fatal("decode error should be a silent drop")
	}
	if len(saver.saved) != 0 {
		t.Fatal("malformed frame was persisted")
	}
}

func TestRouteInvalidFrames(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	cases := []struct {
		name  string
		frame proto.ChatFrame
	}{
		{"no target", proto.ChatFrame{Content: "hi"}},
		{"both targets", proto.ChatFrame{ReceiverID: 2, GroupID: 3, Content: "hi"}},
		{"empty content", proto.ChatFrame{ReceiverID: 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := router.Route(context.Background(), 1, chatFrame(t, tc.frame))
			if !errors.Is(err, ErrInvalidFrame) {
				t.Fatalf("expected ErrInvalidFrame, got %v", err)
			}
			if !IsSilentDrop(err) {
				t.Fatal("invalid frame should be a silent drop")
			}
		})
	}
}

func TestRouteDirectMessageEchoesToSender(t *testing.T) {
	router, registry, saver, _ := newTestRouter(t)

	sender := NewSession(1, "sess-1")
	receiver := NewSession(2, "sess-2")
	registry.Register(sender)
	registry.Register(receiver)

	res, err := router.Route(context.Background(), 1, chatFrame(t, proto.ChatFrame{ReceiverID: 2, Content: "hello"}))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if res.Delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", res.Delivered)
	}
	if len(saver.saved) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(saver.saved))
	}

	var got proto.MessageOut
	if err := json.Unmarshal(recvFrame(t, receiver), &got); err != nil {
		t.Fatalf("unmarshal receiver frame: %v", err)
	}
	if got.SenderID != 1 || got.ReceiverID != 2 || got.Content != "hello" {
		t.Fatalf("unexpected receiver payload: %+v", got)
	}
	if got.ID == 0 {
		t.Fatal("delivered message has no persisted ID")
	}

	var echo proto.MessageOut
	if err := json.Unmarshal(recvFrame(t, sender), &echo); err != nil {
		t.Fatalf("unmarshal sender echo: %v", err)
	}
	if echo.ID != got.ID {
		t.Fatalf("echo carries different message ID: %d vs %d", echo.ID, got.ID)
	}
}

func TestRouteDirectMessageOfflineReceiver(t *testing.T) {
	router, registry, saver, _ := newTestRouter(t)

	sender := NewSession(1, "sess-1")
	registry.Register(sender)

	res, err := router.Route(context.Background(), 1, chatFrame(t, proto.ChatFrame{ReceiverID: 2, Content: "hello"}))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if res.Delivered != 1 {
		t.Fatalf("expected only the sender echo, got %d deliveries", res.Delivered)
	}
	if len(saver.saved) != 1 {
		t.Fatal("message to offline receiver must still be persisted")
	}
}

func TestRouteSelfMessageDeliveredOnce(t *testing.T) {
	router, registry, _, _ := newTestRouter(t)

	sender := NewSession(1, "sess-1")
	registry.Register(sender)

	res, err := router.Route(context.Background(), 1, chatFrame(t, proto.ChatFrame{ReceiverID: 1, Content: "note to self"}))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if res.Delivered != 1 {
		t.Fatalf("self message delivered %d times", res.Delivered)
	}
	recvFrame(t, sender)
	assertNoFrame(t, sender)
}

func TestRouteGroupFanOutFollowsRoster(t *testing.T) {
	router, registry, saver, roster := newTestRouter(t)
	roster.members[10] = []int64{2, 3, 4}

	sender := NewSession(1, "sess-1")
	member2 := NewSession(2, "sess-2")
	member3 := NewSession(3, "sess-3")
	registry.Register(sender)
	registry.Register(member2)
	registry.Register(member3)
	// member 4 is offline

	res, err := router.Route(context.Background(), 1, chatFrame(t, proto.ChatFrame{GroupID: 10, Content: "hey all"}))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if res.Delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", res.Delivered)
	}
	if saver.saved[0].GroupID == nil || *saver.saved[0].GroupID != 10 {
		t.Fatalf("persisted message misses group ID: %+v", saver.saved[0])
	}

	recvFrame(t, member2)
	recvFrame(t, member3)
	// Roster is authoritative: a sender outside it gets no copy.
	assertNoFrame(t, sender)
}

func TestRouteRepeatedFramePersistsTwice(t *testing.T) {
	router, registry, saver, _ := newTestRouter(t)

	sender := NewSession(1, "sess-1")
	receiver := NewSession(2, "sess-2")
	registry.Register(sender)
	registry.Register(receiver)

	// Routing is not deduplicated: a client retransmitting the same frame
	// produces a second message with its own identity.
	raw := chatFrame(t, proto.ChatFrame{ReceiverID: 2, Content: "hello"})
	for i := 0; i < 2; i++ {
		if _, err := router.Route(context.Background(), 1, raw); err != nil {
			t.Fatalf("route attempt %d: %v", i+1, err)
		}
	}

	if len(saver.saved) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(saver.saved))
	}
	if saver.saved[0].ID == saver.saved[1].ID {
		t.Fatalf("duplicate frame reused message ID %d", saver.saved[0].ID)
	}

	var first, second proto.MessageOut
	if err := json.Unmarshal(recvFrame(t, receiver), &first); err != nil {
		t.Fatalf("unmarshal first delivery: %v", err)
	}
	if err := json.Unmarshal(recvFrame(t, receiver), &second); err != nil {
		t.Fatalf("unmarshal second delivery: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("deliveries share message ID %d", first.ID)
	}
}

func TestRoutePersistFailureDeliversNothing(t *testing.T) {
	router, registry, saver, _ := newTestRouter(t)
	saver.err = errors.New("disk full")

	sender := NewSession(1, "sess-1")
	receiver := NewSession(2, "sess-2")
	registry.Register(sender)
	registry.Register(receiver)

	_, err := router.Route(context.Background(), 1, chatFrame(t, proto.ChatFrame{ReceiverID: 2, Content: "hello"}))
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if IsSilentDrop(err) {
		t.Fatal("persistence failure must not look like a protocol drop")
	}
	assertNoFrame(t, sender)
	assertNoFrame(t, receiver)
}

func TestRouteRosterFailure(t *testing.T) {
	router, _, saver, roster := newTestRouter(t)
	roster.err = errors.New("db gone")

	_, err := router.Route(context.Background(), 1, chatFrame(t, proto.ChatFrame{GroupID: 10, Content: "hey"}))
	if err == nil {
		t.Fatal("expected roster error")
	}
	if len(saver.saved) != 0 {
		t.Fatal("message persisted despite roster failure")
	}
}
