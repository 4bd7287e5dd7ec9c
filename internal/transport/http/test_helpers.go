package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/linwc/talkwire-server/internal/auth"
	"github.com/linwc/talkwire-server/internal/config"
	"github.com/linwc/talkwire-server/internal/core"
	"github.com/linwc/talkwire-server/internal/service/friends"
	"github.com/linwc/talkwire-server/internal/service/messages"
	"github.com/linwc/talkwire-server/internal/store"
	"github.com/linwc/talkwire-server/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

// startTestServer wires a full server around an in-memory store and returns
// it together with the collaborators tests may want to reach into.
func startTestServer(t *testing.T) (*httptest.Server, store.Store, *auth.Service) {
	t.Helper()

	logger := zerolog.Nop()
	st := createTestStore(t)
	authService := createTestAuthService(t, st, "test-secret")

	registry := core.NewRegistry(&logger, nil)
	router := core.NewRouter(registry, st, st, &logger, nil)
	notifier := core.NewNotifier(registry, &logger, nil)

	server := NewServer(Deps{
		Auth:     authService,
		Registry: registry,
		Router:   router,
		Friends:  friends.New(st, notifier, &logger),
		Messages: messages.New(st, notifier, &logger),
		Store:    st,
	}, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, st, authService
}
