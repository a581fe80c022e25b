package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one broadcast event staged in the session outbox. Payload holds
// the full events.Envelope JSON so the relay never needs to re-marshal.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	SessionCode string          `json:"session_code"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	SentAt      *time.Time      `json:"sent_at,omitempty"`
}
