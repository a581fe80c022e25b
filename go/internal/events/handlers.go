package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// RevealWaveHandler consumes one reveal wave on the participant side.
type RevealWaveHandler func(ctx context.Context, sessionCode string, payload RevealWavePayload) error

// ComboHandler consumes one combo announcement on the participant side.
type ComboHandler func(ctx context.Context, sessionCode string, payload ComboPayload) error

// HandlerMap routes inbound envelopes to typed handlers. It replaces
// tag-switching on an opaque payload: each event type gets exactly one
// registered handler and an unknown tag is logged and dropped.
type HandlerMap struct {
	revealWave RevealWaveHandler
	combo      ComboHandler
}

// NewHandlerMap creates an empty handler map. Unregistered event types are
// ignored at dispatch time.
func NewHandlerMap() *HandlerMap {
	return &HandlerMap{}
}

// OnRevealWave registers the reveal-wave handler.
func (h *HandlerMap) OnRevealWave(fn RevealWaveHandler) *HandlerMap {
	h.revealWave = fn
	return h
}

// OnCombo registers the combo handler.
func (h *HandlerMap) OnCombo(fn ComboHandler) *HandlerMap {
	h.combo = fn
	return h
}

// Dispatch decodes the envelope payload and invokes the matching handler.
func (h *HandlerMap) Dispatch(ctx context.Context, env Envelope) error {
	switch env.Type {
	case EventTypeRevealWave:
		if h.revealWave == nil {
			return nil
		}
		var payload RevealWavePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal reveal-wave payload: %w", err)
		}
		return h.revealWave(ctx, env.SessionCode, payload)

	case EventTypeCombo:
		if h.combo == nil {
			return nil
		}
		var payload ComboPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal combo payload: %w", err)
		}
		return h.combo(ctx, env.SessionCode, payload)

	default:
		log.Warn().
			Str("event_type", string(env.Type)).
			Str("session_code", env.SessionCode).
			Msg("unknown event type - ignoring")
		return nil
	}
}
