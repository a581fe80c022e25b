package session

import (
	"context"

	"github.com/metadiscourse/metaworkshop/go/internal/combo"
	"github.com/metadiscourse/metaworkshop/go/internal/dedup"
	"github.com/metadiscourse/metaworkshop/go/internal/events"
	"github.com/metadiscourse/metaworkshop/go/internal/reveal"
	"github.com/rs/zerolog/log"
)

// Broadcaster delivers one event envelope to every session participant.
type Broadcaster interface {
	Broadcast(ctx context.Context, env events.Envelope) error
}

// Coordinator hosts the authority-only session operations: card submission
// with dedup, reveal triggering, and bonk recording with combo detection.
// Every entry point enforces the authority invariant before any store or
// broadcast side effect.
type Coordinator struct {
	dedup       *dedup.Engine
	detector    *combo.Detector
	scheduler   *reveal.Scheduler
	broadcaster Broadcaster
}

// NewCoordinator wires the coordinator components together.
func NewCoordinator(engine *dedup.Engine, detector *combo.Detector, scheduler *reveal.Scheduler, broadcaster Broadcaster) *Coordinator {
	return &Coordinator{
		dedup:       engine,
		detector:    detector,
		scheduler:   scheduler,
		broadcaster: broadcaster,
	}
}

// SubmitCard runs a participant's card submission through the dedup
// engine. Non-authority callers are dropped without a write.
func (c *Coordinator) SubmitCard(ctx context.Context, sctx Context, text, phase string) (dedup.Result, error) {
	if !sctx.IsAuthority {
		log.Warn().
			Str("session_code", sctx.SessionCode).
			Str("player_id", sctx.PlayerID).
			Msg("SubmitCard dropped: caller is not authority")
		return 0, ErrNotAuthority
	}
	return c.dedup.Submit(ctx, sctx.SessionCode, text, sctx.PlayerID, phase)
}

// TriggerReveal starts the wave broadcast for the session. Non-authority
// callers and re-triggers during an active reveal are dropped.
func (c *Coordinator) TriggerReveal(ctx context.Context, sctx Context) error {
	if !sctx.IsAuthority {
		log.Warn().
			Str("session_code", sctx.SessionCode).
			Str("player_id", sctx.PlayerID).
			Msg("reveal trigger dropped: caller is not authority")
		return ErrNotAuthority
	}
	return c.scheduler.Trigger(ctx, sctx.SessionCode)
}

// BonkCard records a bonk against a revealed cluster and broadcasts a
// combo event when the cluster's trailing window crosses the threshold.
// The bonk timestamp comes from the coordinator clock, not the caller.
func (c *Coordinator) BonkCard(ctx context.Context, sctx Context, clusterID string) (combo.Result, error) {
	if !sctx.IsAuthority {
		log.Warn().
			Str("session_code", sctx.SessionCode).
			Str("player_id", sctx.PlayerID).
			Msg("BonkCard dropped: caller is not authority")
		return combo.Result{}, ErrNotAuthority
	}

	result, err := c.detector.RecordBonk(ctx, sctx.SessionCode, clusterID, sctx.PlayerID)
	if err != nil {
		return combo.Result{}, err
	}
	if !result.Detected {
		return result, nil
	}

	env, err := events.NewEnvelope(sctx.SessionCode, events.EventTypeCombo, events.ComboPayload{
		ClusterID:   result.ClusterID,
		ComboCount:  result.ComboCount,
		TimestampMs: result.TimestampMs,
	})
	if err != nil {
		log.Error().Err(err).Str("session_code", sctx.SessionCode).Msg("failed to build combo envelope")
		return result, nil
	}
	if err := c.broadcaster.Broadcast(ctx, env); err != nil {
		// Best-effort delivery: the combo row (if persisted) and the
		// result stand even when the broadcast fails.
		log.Error().
			Err(err).
			Str("session_code", sctx.SessionCode).
			Str("cluster_id", clusterID).
			Msg("failed to broadcast combo")
	}
	return result, nil
}

// EndSession abandons any in-flight reveal for the session and releases
// its combo lock entries.
func (c *Coordinator) EndSession(sctx Context) {
	if !sctx.IsAuthority {
		return
	}
	c.scheduler.Reset(sctx.SessionCode)
	c.detector.ReleaseSession(sctx.SessionCode)
}
