package combo

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/metadiscourse/metaworkshop/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// WindowMs is the trailing window over which bonks on a cluster count
	// toward a combo.
	WindowMs = 3000
	// Threshold is the in-window bonk count at which a combo fires.
	Threshold = 2
)

// BonkStore is what the detector needs from the session store.
type BonkStore interface {
	InsertBonk(ctx context.Context, bonk models.Bonk) error
	CountRecentBonks(ctx context.Context, sessionCode, clusterID string, sinceMs int64) (int, error)
	InsertCombo(ctx context.Context, combo models.Combo) error
}

// Result reports the outcome of recording one bonk. Detected is false for
// a NoCombo outcome; when true, the remaining fields describe the combo
// broadcast payload.
type Result struct {
	Detected    bool
	ClusterID   string
	ComboCount  int
	TimestampMs int64
}

// Detector records bonks and evaluates the trailing combo window per
// cluster. The store is the source of truth: every bonk re-queries the
// window rather than trusting cached counts. Concurrent bonks on the same
// (session, cluster) are serialized by a keyed mutex so two callers cannot
// both read a stale count; different clusters proceed concurrently.
type Detector struct {
	store BonkStore
	clock clockwork.Clock

	mu    sync.Mutex
	locks map[clusterKey]*sync.Mutex
}

type clusterKey struct {
	sessionCode string
	clusterID   string
}

// NewDetector creates a combo detector on the real clock.
func NewDetector(store BonkStore) *Detector {
	return &Detector{
		store: store,
		clock: clockwork.NewRealClock(),
		locks: make(map[clusterKey]*sync.Mutex),
	}
}

// WithClock swaps the clock. Tests use a clockwork fake.
func (d *Detector) WithClock(clock clockwork.Clock) *Detector {
	d.clock = clock
	return d
}

// RecordBonk appends a bonk stamped with the coordinator's clock and
// re-evaluates the cluster's trailing window, counting the bonk just
// recorded. A count at or above Threshold persists a combo row and returns
// a detection for broadcast. A failed bonk insert aborts the operation; a
// failed combo insert is logged and the detection still stands, so the
// broadcast is never lost to best-effort durability.
func (d *Detector) RecordBonk(ctx context.Context, sessionCode, clusterID, playerID string) (Result, error) {
	lock := d.clusterLock(sessionCode, clusterID)
	lock.Lock()
	defer lock.Unlock()

	now := d.clock.Now().UnixMilli()
	if err := d.store.InsertBonk(ctx, models.Bonk{
		SessionCode: sessionCode,
		ClusterID:   clusterID,
		PlayerID:    playerID,
		TimestampMs: now,
	}); err != nil {
		return Result{}, fmt.Errorf("failed to record bonk: %w", err)
	}

	count, err := d.store.CountRecentBonks(ctx, sessionCode, clusterID, now-WindowMs)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count recent bonks: %w", err)
	}
	if count < Threshold {
		return Result{}, nil
	}

	if err := d.store.InsertCombo(ctx, models.Combo{
		SessionCode: sessionCode,
		ClusterID:   clusterID,
		ComboCount:  count,
		TimestampMs: now,
	}); err != nil {
		log.Error().
			Err(err).
			Str("session_code", sessionCode).
			Str("cluster_id", clusterID).
			Int("combo_count", count).
			Msg("failed to persist combo record")
	}

	return Result{
		Detected:    true,
		ClusterID:   clusterID,
		ComboCount:  count,
		TimestampMs: now,
	}, nil
}

// ReleaseSession drops the lock entries for a finished session so the
// keyed-mutex map does not grow for the process lifetime. A later bonk on
// the session simply recreates its locks.
func (d *Detector) ReleaseSession(sessionCode string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.locks {
		if key.sessionCode == sessionCode {
			delete(d.locks, key)
		}
	}
}

func (d *Detector) clusterLock(sessionCode, clusterID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := clusterKey{sessionCode: sessionCode, clusterID: clusterID}
	lock, ok := d.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[key] = lock
	}
	return lock
}
