package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/metadiscourse/metaworkshop/go/internal/models"
)

// EventType tags a session broadcast event.
type EventType string

const (
	EventTypeRevealWave EventType = "reveal-wave"
	EventTypeCombo      EventType = "combo"
)

// Envelope is the wire form of every session broadcast event.
type Envelope struct {
	EventID     string          `json:"event_id"`
	SessionCode string          `json:"session_code"`
	Type        EventType       `json:"event_type"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// RevealWavePayload is one batch of revealed cards. WaveIndex/WaveCount
// let consumers detect a reveal that was abandoned mid-sequence.
type RevealWavePayload struct {
	WaveIndex int                 `json:"wave_index"`
	WaveCount int                 `json:"wave_count"`
	Cards     []models.RevealCard `json:"cards"`
}

// ComboPayload announces a detected bonk combo on a cluster.
type ComboPayload struct {
	ClusterID   string `json:"cluster_id"`
	ComboCount  int    `json:"combo_count"`
	TimestampMs int64  `json:"timestamp"`
}

// NewEnvelope wraps a payload struct into a wire envelope.
func NewEnvelope(sessionCode string, eventType EventType, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:     uuid.New().String(),
		SessionCode: sessionCode,
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		Payload:     data,
	}, nil
}
