package core

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry maps each user to their single live session. Register, Unregister
// and Lookup are linearizable with respect to each other: no lookup ever
// observes zero or two sessions for a user mid-replace.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	metrics *Metrics
	log     *zerolog.Logger
}

// NewRegistry builds an empty registry. metrics may be nil.
func NewRegistry(logger *zerolog.Logger, metrics *Metrics) *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		metrics:  metrics,
		log:      logger,
	}
}

// Register installs s as the single live session for its user. Any existing
// session for the same user is closed with CloseReplaced before s becomes
// visible.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	old := r.sessions[s.UserID]
	if old != nil {
		old.Close(CloseReplaced)
	}
	r.sessions[s.UserID] = s
	active := len(r.sessions)
	r.mu.Unlock()

	if old != nil {
		r.metrics.RecordSessionReplaced()
		r.log.Debug().
			Int64("user_id", s.UserID).
			Str("old_session_id", old.ID).
			Str("session_id", s.ID).
			Msg("session superseded")
	}
	r.metrics.RecordActiveSessions(active)
	r.log.Debug().Int64("user_id", s.UserID).Str("session_id", s.ID).Msg("session registered")
}

// Unregister removes s from the registry only if it is still the current
// session for its user. A stale unregister from a superseded session is a
// no-op, so a slow disconnect can never evict a newer live session.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	current := r.sessions[s.UserID]
	removed := current == s
	if removed {
		delete(r.sessions, s.UserID)
	}
	active := len(r.sessions)
	r.mu.Unlock()

	s.Close(CloseNormal)
	if removed {
		r.metrics.RecordActiveSessions(active)
		r.log.Debug().Int64("user_id", s.UserID).Str("session_id", s.ID).Msg("session unregistered")
	}
}

// Lookup returns the live session for a user, or nil when the user is
// offline. Offline is a normal outcome, not an error.
func (r *Registry) Lookup(userID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[userID]
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
