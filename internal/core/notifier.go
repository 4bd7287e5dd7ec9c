package core

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Notifier delivers out-of-band event frames to a user's live session.
// Delivery is best effort: the caller is responsible for having recorded
// the underlying state change durably before notifying.
type Notifier struct {
	registry *Registry
	metrics  *Metrics
	log      *zerolog.Logger
}

// NewNotifier builds a notifier over the registry. metrics may be nil.
func NewNotifier(registry *Registry, logger *zerolog.Logger, metrics *Metrics) *Notifier {
	return &Notifier{
		registry: registry,
		metrics:  metrics,
		log:      logger,
	}
}

// Notify serializes payload and writes it to targetID's live session.
// Returns false when the user is offline or the write fails; nothing is
// queued for later delivery.
func (n *Notifier) Notify(targetID int64, payload any) bool {
	sess := n.registry.Lookup(targetID)
	if sess == nil {
		n.metrics.RecordNotification(false)
		return false
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		n.log.Error().Err(err).Int64("user_id", targetID).Msg("encode notification")
		n.metrics.RecordNotification(false)
		return false
	}

	if !sess.TrySend(raw) {
		n.log.Warn().
			Int64("user_id", targetID).
			Str("session_id", sess.ID).
			Msg("dropping notification to stalled session")
		go n.registry.Unregister(sess)
		n.metrics.RecordNotification(false)
		return false
	}

	n.metrics.RecordNotification(true)
	return true
}
