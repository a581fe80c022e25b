package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/metadiscourse/metaworkshop/go/internal/events"
)

// Staging inserts are what the broadcaster needs from the repository.
type Staging interface {
	InsertEvent(ctx context.Context, sessionCode, eventType string, payload json.RawMessage) error
}

// Broadcaster implements the coordinator-facing broadcast primitive on top
// of the outbox: an emitted event is durably staged before the relay
// publishes it to the bus, so a crash between detection and delivery
// cannot drop it.
type Broadcaster struct {
	staging Staging
}

// NewBroadcaster creates an outbox-backed broadcaster.
func NewBroadcaster(staging Staging) *Broadcaster {
	return &Broadcaster{staging: staging}
}

// Broadcast stages the envelope for relay to all session participants.
func (b *Broadcaster) Broadcast(ctx context.Context, env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return b.staging.InsertEvent(ctx, env.SessionCode, string(env.Type), data)
}
