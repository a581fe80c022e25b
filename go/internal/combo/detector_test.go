package combo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/metadiscourse/metaworkshop/go/internal/models"
	"github.com/metadiscourse/metaworkshop/go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_SingleBonkNoCombo(t *testing.T) {
	mem := store.NewMemory()
	detector := NewDetector(mem).WithClock(clockwork.NewFakeClock())
	ctx := context.Background()

	result, err := detector.RecordBonk(ctx, "ABCD", "cluster-1", "p1")
	require.NoError(t, err)
	assert.False(t, result.Detected)

	bonks, err := mem.GetBonkRows(ctx, "ABCD")
	require.NoError(t, err)
	require.Len(t, bonks, 1, "the bonk persists even without a combo")

	combos, err := mem.GetCombosBySession(ctx, "ABCD")
	require.NoError(t, err)
	assert.Empty(t, combos)
}

func TestDetector_TwoBonksInWindowFireCombo(t *testing.T) {
	mem := store.NewMemory()
	clock := clockwork.NewFakeClock()
	detector := NewDetector(mem).WithClock(clock)
	ctx := context.Background()

	_, err := detector.RecordBonk(ctx, "ABCD", "cluster-1", "p1")
	require.NoError(t, err)

	clock.Advance(2900 * time.Millisecond)
	result, err := detector.RecordBonk(ctx, "ABCD", "cluster-1", "p2")
	require.NoError(t, err)

	assert.True(t, result.Detected)
	assert.Equal(t, "cluster-1", result.ClusterID)
	assert.Equal(t, 2, result.ComboCount)
	assert.Equal(t, clock.Now().UnixMilli(), result.TimestampMs)

	combos, err := mem.GetCombosBySession(ctx, "ABCD")
	require.NoError(t, err)
	require.Len(t, combos, 1)
	assert.Equal(t, models.Combo{
		SessionCode: "ABCD",
		ClusterID:   "cluster-1",
		ComboCount:  2,
		TimestampMs: clock.Now().UnixMilli(),
	}, combos[0])
}

func TestDetector_WindowExcludesOldBonks(t *testing.T) {
	mem := store.NewMemory()
	clock := clockwork.NewFakeClock()
	detector := NewDetector(mem).WithClock(clock)
	ctx := context.Background()

	_, err := detector.RecordBonk(ctx, "ABCD", "cluster-1", "p1")
	require.NoError(t, err)

	clock.Advance(6 * time.Second)
	result, err := detector.RecordBonk(ctx, "ABCD", "cluster-1", "p2")
	require.NoError(t, err)
	assert.False(t, result.Detected, "a bonk outside the trailing window does not count")
}

func TestDetector_SlidingWindowGrowsCount(t *testing.T) {
	mem := store.NewMemory()
	clock := clockwork.NewFakeClock()
	detector := NewDetector(mem).WithClock(clock)
	ctx := context.Background()

	_, err := detector.RecordBonk(ctx, "ABCD", "cluster-1", "p1")
	require.NoError(t, err)

	clock.Advance(time.Second)
	result, err := detector.RecordBonk(ctx, "ABCD", "cluster-1", "p2")
	require.NoError(t, err)
	require.True(t, result.Detected)
	assert.Equal(t, 2, result.ComboCount)

	clock.Advance(time.Second)
	result, err = detector.RecordBonk(ctx, "ABCD", "cluster-1", "p3")
	require.NoError(t, err)
	require.True(t, result.Detected)
	assert.Equal(t, 3, result.ComboCount, "each in-window bonk past the threshold fires again with the grown count")

	combos, err := mem.GetCombosBySession(ctx, "ABCD")
	require.NoError(t, err)
	assert.Len(t, combos, 2)
}

func TestDetector_ClustersAreIndependent(t *testing.T) {
	mem := store.NewMemory()
	clock := clockwork.NewFakeClock()
	detector := NewDetector(mem).WithClock(clock)
	ctx := context.Background()

	_, err := detector.RecordBonk(ctx, "ABCD", "cluster-1", "p1")
	require.NoError(t, err)

	result, err := detector.RecordBonk(ctx, "ABCD", "cluster-2", "p2")
	require.NoError(t, err)
	assert.False(t, result.Detected, "bonks on other clusters never count toward this one")

	// Same cluster id in another session is a different key too.
	result, err = detector.RecordBonk(ctx, "WXYZ", "cluster-1", "p3")
	require.NoError(t, err)
	assert.False(t, result.Detected)
}

func TestDetector_ReleaseSession(t *testing.T) {
	mem := store.NewMemory()
	clock := clockwork.NewFakeClock()
	detector := NewDetector(mem).WithClock(clock)
	ctx := context.Background()

	_, err := detector.RecordBonk(ctx, "ABCD", "cluster-1", "p1")
	require.NoError(t, err)
	_, err = detector.RecordBonk(ctx, "ABCD", "cluster-2", "p1")
	require.NoError(t, err)
	_, err = detector.RecordBonk(ctx, "WXYZ", "cluster-1", "p1")
	require.NoError(t, err)

	detector.ReleaseSession("ABCD")

	detector.mu.Lock()
	remaining := len(detector.locks)
	detector.mu.Unlock()
	assert.Equal(t, 1, remaining, "only the other session's lock entry survives")

	// Bonking the released session again just recreates its lock; the
	// stored bonk history is untouched, so the window still fires.
	clock.Advance(time.Second)
	result, err := detector.RecordBonk(ctx, "ABCD", "cluster-1", "p2")
	require.NoError(t, err)
	assert.True(t, result.Detected)
}

type failingBonkStore struct {
	*store.Memory
	bonkErr  error
	comboErr error
}

func (f *failingBonkStore) InsertBonk(ctx context.Context, bonk models.Bonk) error {
	if f.bonkErr != nil {
		return f.bonkErr
	}
	return f.Memory.InsertBonk(ctx, bonk)
}

func (f *failingBonkStore) InsertCombo(ctx context.Context, combo models.Combo) error {
	if f.comboErr != nil {
		return f.comboErr
	}
	return f.Memory.InsertCombo(ctx, combo)
}

func TestDetector_BonkInsertFailureAborts(t *testing.T) {
	bonkErr := errors.New("connection refused")
	detector := NewDetector(&failingBonkStore{Memory: store.NewMemory(), bonkErr: bonkErr})

	result, err := detector.RecordBonk(context.Background(), "ABCD", "cluster-1", "p1")
	require.ErrorIs(t, err, bonkErr)
	assert.False(t, result.Detected)
}

func TestDetector_ComboInsertFailureKeepsDetection(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fs := &failingBonkStore{Memory: store.NewMemory(), comboErr: errors.New("disk full")}
	detector := NewDetector(fs).WithClock(clock)
	ctx := context.Background()

	_, err := detector.RecordBonk(ctx, "ABCD", "cluster-1", "p1")
	require.NoError(t, err)

	clock.Advance(time.Second)
	result, err := detector.RecordBonk(ctx, "ABCD", "cluster-1", "p2")
	require.NoError(t, err, "a failed combo write must not surface as an operation failure")
	assert.True(t, result.Detected, "the detection still stands so the broadcast is not lost")
	assert.Equal(t, 2, result.ComboCount)
}
