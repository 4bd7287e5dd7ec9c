package core

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/linwc/talkwire-server/internal/proto"
)

func benchmarkGroupFanOut(b *testing.B, recipients int) {
	registry := NewRegistry(testLogger(), nil)
	saver := &fakeSaver{}
	roster := &fakeRoster{members: make(map[int64][]int64)}
	router := NewRouter(registry, saver, roster, testLogger(), nil)

	const groupID = 1
	members := make([]int64, 0, recipients)
	for i := 0; i < recipients; i++ {
		userID := int64(i + 2)
		members = append(members, userID)
		sess := NewSession(userID, fmt.Sprintf("bench-%d", userID))
		registry.Register(sess)

		// Drain deliveries so buffers never fill mid-benchmark.
		go func(s *Session) {
			for range s.Outbound() {
			}
		}(sess)
	}
	roster.members[groupID] = members

	raw, err := json.Marshal(proto.ChatFrame{GroupID: groupID, Content: "payload"})
	if err != nil {
		b.Fatalf("marshal frame: %v", err)
	}

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := router.Route(ctx, 1, raw); err != nil {
			b.Fatalf("route: %v", err)
		}
	}
}

func BenchmarkGroupFanOut_10(b *testing.B)  { benchmarkGroupFanOut(b, 10) }
func BenchmarkGroupFanOut_100(b *testing.B) { benchmarkGroupFanOut(b, 100) }
func BenchmarkGroupFanOut_500(b *testing.B) { benchmarkGroupFanOut(b, 500) }
