package reveal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/metadiscourse/metaworkshop/go/internal/events"
	"github.com/metadiscourse/metaworkshop/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	cards []models.RevealCard
	err   error
}

func (f *fakeFetcher) GetCardsBySession(_ context.Context, _ string) ([]models.RevealCard, error) {
	return f.cards, f.err
}

type captureBroadcaster struct {
	mu   sync.Mutex
	envs []events.Envelope
	ch   chan events.Envelope
}

func newCaptureBroadcaster() *captureBroadcaster {
	return &captureBroadcaster{ch: make(chan events.Envelope, 16)}
}

func (b *captureBroadcaster) Broadcast(_ context.Context, env events.Envelope) error {
	b.mu.Lock()
	b.envs = append(b.envs, env)
	b.mu.Unlock()
	b.ch <- env
	return nil
}

func (b *captureBroadcaster) next(t *testing.T) events.Envelope {
	t.Helper()
	select {
	case env := <-b.ch:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
		return events.Envelope{}
	}
}

func makeCards(n int) []models.RevealCard {
	cards := make([]models.RevealCard, n)
	for i := range cards {
		cards[i] = models.RevealCard{
			Text:    fmt.Sprintf("Card %d", i),
			Cleaned: fmt.Sprintf("card %d", i),
		}
	}
	return cards
}

func decodeWave(t *testing.T, env events.Envelope) events.RevealWavePayload {
	t.Helper()
	require.Equal(t, events.EventTypeRevealWave, env.Type)
	var payload events.RevealWavePayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	return payload
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name      string
		cards     int
		waveSize  int
		wantSizes []int
	}{
		{"even split", 10, 5, []int{5, 5}},
		{"remainder wave", 12, 5, []int{5, 5, 2}},
		{"fewer than one wave", 3, 5, []int{3}},
		{"single card", 1, 5, []int{1}},
		{"empty", 0, 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			waves := Partition(makeCards(tt.cards), tt.waveSize)
			require.Len(t, waves, len(tt.wantSizes))
			for i, want := range tt.wantSizes {
				assert.Len(t, waves[i], want, "wave %d", i)
			}
		})
	}
}

func TestScheduler_Trigger_FullSequence(t *testing.T) {
	clock := clockwork.NewFakeClock()
	broadcaster := newCaptureBroadcaster()
	scheduler := NewScheduler(&fakeFetcher{cards: makeCards(12)}, broadcaster).WithClock(clock)
	defer scheduler.Close()

	require.NoError(t, scheduler.Trigger(context.Background(), "ABCD"))

	// Wave 0 goes out before the first delay.
	wave := decodeWave(t, broadcaster.next(t))
	assert.Equal(t, 0, wave.WaveIndex)
	assert.Equal(t, 3, wave.WaveCount)
	assert.Len(t, wave.Cards, 5)

	clock.BlockUntil(1)
	clock.Advance(DefaultWaveDelay)
	wave = decodeWave(t, broadcaster.next(t))
	assert.Equal(t, 1, wave.WaveIndex)
	assert.Len(t, wave.Cards, 5)

	clock.BlockUntil(1)
	clock.Advance(DefaultWaveDelay)
	wave = decodeWave(t, broadcaster.next(t))
	assert.Equal(t, 2, wave.WaveIndex)
	assert.Len(t, wave.Cards, 2)

	require.Eventually(t, func() bool {
		return scheduler.State("ABCD") == StateIdle
	}, 2*time.Second, 10*time.Millisecond, "scheduler returns to idle after the last wave")
}

func TestScheduler_Trigger_WavesArePermutation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	broadcaster := newCaptureBroadcaster()
	cards := makeCards(7)
	scheduler := NewScheduler(&fakeFetcher{cards: cards}, broadcaster).WithClock(clock)
	defer scheduler.Close()

	require.NoError(t, scheduler.Trigger(context.Background(), "ABCD"))

	seen := make(map[string]int)
	wave := decodeWave(t, broadcaster.next(t))
	for _, c := range wave.Cards {
		seen[c.Cleaned]++
	}
	clock.BlockUntil(1)
	clock.Advance(DefaultWaveDelay)
	wave = decodeWave(t, broadcaster.next(t))
	for _, c := range wave.Cards {
		seen[c.Cleaned]++
	}

	require.Len(t, seen, len(cards), "every card appears across the waves")
	for _, c := range cards {
		assert.Equal(t, 1, seen[c.Cleaned], "card %q appears exactly once", c.Cleaned)
	}
}

func TestScheduler_Trigger_EmptySession(t *testing.T) {
	broadcaster := newCaptureBroadcaster()
	scheduler := NewScheduler(&fakeFetcher{}, broadcaster)
	defer scheduler.Close()

	require.NoError(t, scheduler.Trigger(context.Background(), "ABCD"))

	assert.Equal(t, StateIdle, scheduler.State("ABCD"))
	assert.Empty(t, broadcaster.envs, "an empty session emits no waves")
}

func TestScheduler_Trigger_FetchError(t *testing.T) {
	fetchErr := errors.New("connection refused")
	broadcaster := newCaptureBroadcaster()
	scheduler := NewScheduler(&fakeFetcher{err: fetchErr}, broadcaster)
	defer scheduler.Close()

	err := scheduler.Trigger(context.Background(), "ABCD")
	require.ErrorIs(t, err, fetchErr)

	assert.Equal(t, StateIdle, scheduler.State("ABCD"), "a failed trigger leaves the session idle")
	assert.Empty(t, broadcaster.envs)
}

func TestScheduler_Trigger_RejectsWhileActive(t *testing.T) {
	clock := clockwork.NewFakeClock()
	broadcaster := newCaptureBroadcaster()
	scheduler := NewScheduler(&fakeFetcher{cards: makeCards(10)}, broadcaster).WithClock(clock)
	defer scheduler.Close()

	require.NoError(t, scheduler.Trigger(context.Background(), "ABCD"))
	broadcaster.next(t) // wave 0 out, goroutine now parked on the delay

	err := scheduler.Trigger(context.Background(), "ABCD")
	assert.ErrorIs(t, err, ErrRevealActive)

	// A different session is unaffected.
	other := NewScheduler(&fakeFetcher{cards: makeCards(2)}, newCaptureBroadcaster())
	defer other.Close()
	assert.NoError(t, other.Trigger(context.Background(), "WXYZ"))
}

func TestScheduler_Reset_AbandonsRemainingWaves(t *testing.T) {
	clock := clockwork.NewFakeClock()
	broadcaster := newCaptureBroadcaster()
	scheduler := NewScheduler(&fakeFetcher{cards: makeCards(10)}, broadcaster).WithClock(clock)
	defer scheduler.Close()

	require.NoError(t, scheduler.Trigger(context.Background(), "ABCD"))
	broadcaster.next(t)
	clock.BlockUntil(1)

	scheduler.Reset("ABCD")

	require.Eventually(t, func() bool {
		return scheduler.State("ABCD") == StateIdle
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case env := <-broadcaster.ch:
		t.Fatalf("unexpected broadcast after reset: %s", env.Type)
	case <-time.After(100 * time.Millisecond):
	}

	// The session can be triggered again after a reset.
	require.NoError(t, scheduler.Trigger(context.Background(), "ABCD"))
	broadcaster.next(t)
}

func TestScheduler_RetriggerAfterReset_NewRevealSurvives(t *testing.T) {
	clock := clockwork.NewFakeClock()
	broadcaster := newCaptureBroadcaster()
	scheduler := NewScheduler(&fakeFetcher{cards: makeCards(10)}, broadcaster).WithClock(clock)
	defer scheduler.Close()

	// First reveal: wave 0 out, goroutine parked on the inter-wave delay.
	require.NoError(t, scheduler.Trigger(context.Background(), "ABCD"))
	broadcaster.next(t)
	clock.BlockUntil(1)

	// Abandon it and immediately start a second reveal for the same session.
	scheduler.Reset("ABCD")
	require.NoError(t, scheduler.Trigger(context.Background(), "ABCD"))
	wave := decodeWave(t, broadcaster.next(t))
	assert.Equal(t, 0, wave.WaveIndex)

	// The abandoned goroutine's deferred cleanup must not tear down the
	// reveal that replaced it.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateBroadcasting, scheduler.State("ABCD"))

	// The abandoned reveal's timer is still registered on the fake clock,
	// so wait for the second reveal's timer as well before advancing.
	clock.BlockUntil(2)
	clock.Advance(DefaultWaveDelay)
	wave = decodeWave(t, broadcaster.next(t))
	assert.Equal(t, 1, wave.WaveIndex, "the second reveal finishes its waves")

	require.Eventually(t, func() bool {
		return scheduler.State("ABCD") == StateIdle
	}, 2*time.Second, 10*time.Millisecond)
}
