package reveal

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/metadiscourse/metaworkshop/go/internal/events"
	"github.com/metadiscourse/metaworkshop/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultWaveSize is how many cards each broadcast wave carries.
	DefaultWaveSize = 5
	// DefaultWaveDelay is the suspension between consecutive waves.
	DefaultWaveDelay = 2 * time.Second
)

// ErrRevealActive rejects a trigger while a reveal for the same session is
// still fetching or broadcasting.
var ErrRevealActive = errors.New("reveal already active for session")

// State tracks the per-session reveal lifecycle.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateBroadcasting
)

// CardFetcher is what the scheduler needs from the session store.
type CardFetcher interface {
	GetCardsBySession(ctx context.Context, sessionCode string) ([]models.RevealCard, error)
}

// Broadcaster delivers one event envelope to every session participant.
type Broadcaster interface {
	Broadcast(ctx context.Context, env events.Envelope) error
}

// Scheduler runs the wave-based reveal for each session: fetch all accepted
// cards, shuffle uniformly, partition into fixed-size waves, and emit one
// broadcast per wave with a fixed delay in between. At most one reveal is
// active per session; reveals for different sessions run independently and
// the inter-wave suspension holds no lock on the store.
type Scheduler struct {
	store       CardFetcher
	broadcaster Broadcaster
	clock       clockwork.Clock
	waveSize    int
	waveDelay   time.Duration

	mu      sync.Mutex
	reveals map[string]*activeReveal
}

type activeReveal struct {
	state  State
	cancel context.CancelFunc
}

// NewScheduler creates a reveal scheduler with the default wave size and
// delay, using the real clock.
func NewScheduler(store CardFetcher, broadcaster Broadcaster) *Scheduler {
	return &Scheduler{
		store:       store,
		broadcaster: broadcaster,
		clock:       clockwork.NewRealClock(),
		waveSize:    DefaultWaveSize,
		waveDelay:   DefaultWaveDelay,
		reveals:     make(map[string]*activeReveal),
	}
}

// WithClock swaps the clock. Tests use a clockwork fake.
func (s *Scheduler) WithClock(clock clockwork.Clock) *Scheduler {
	s.clock = clock
	return s
}

// State reports the current reveal state for a session.
func (s *Scheduler) State(sessionCode string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reveals[sessionCode]; ok {
		return r.state
	}
	return StateIdle
}

// Trigger starts a reveal for the session. The card fetch runs before
// Trigger returns, so a storage failure or an empty session reports
// immediately and emits nothing. On success the wave sequence runs in the
// background until the last wave or until Reset/Close abandons it.
func (s *Scheduler) Trigger(ctx context.Context, sessionCode string) error {
	s.mu.Lock()
	if r, ok := s.reveals[sessionCode]; ok && r.state != StateIdle {
		s.mu.Unlock()
		return ErrRevealActive
	}
	revealCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	reveal := &activeReveal{state: StateFetching, cancel: cancel}
	s.reveals[sessionCode] = reveal
	s.mu.Unlock()

	cards, err := s.store.GetCardsBySession(ctx, sessionCode)
	if err != nil {
		s.finish(sessionCode, reveal)
		return fmt.Errorf("failed to fetch cards for reveal: %w", err)
	}
	if len(cards) == 0 {
		log.Info().Str("session_code", sessionCode).Msg("no cards to reveal")
		s.finish(sessionCode, reveal)
		return nil
	}

	// Uniform Fisher-Yates; the order only has to be unpredictable, not
	// cryptographically strong.
	shuffled := make([]models.RevealCard, len(cards))
	copy(shuffled, cards)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	waves := Partition(shuffled, s.waveSize)

	s.mu.Lock()
	reveal.state = StateBroadcasting
	s.mu.Unlock()

	log.Info().
		Str("session_code", sessionCode).
		Int("cards", len(shuffled)).
		Int("waves", len(waves)).
		Msg("reveal started")

	go s.broadcastWaves(revealCtx, sessionCode, reveal, waves)
	return nil
}

// Reset abandons any in-flight reveal for the session. Already-emitted
// waves are not retracted.
func (s *Scheduler) Reset(sessionCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reveals[sessionCode]; ok {
		r.cancel()
		delete(s.reveals, sessionCode)
	}
}

// Close abandons every in-flight reveal.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, r := range s.reveals {
		r.cancel()
		delete(s.reveals, code)
	}
}

func (s *Scheduler) broadcastWaves(ctx context.Context, sessionCode string, r *activeReveal, waves [][]models.RevealCard) {
	defer s.finish(sessionCode, r)

	for i, wave := range waves {
		env, err := events.NewEnvelope(sessionCode, events.EventTypeRevealWave, events.RevealWavePayload{
			WaveIndex: i,
			WaveCount: len(waves),
			Cards:     wave,
		})
		if err != nil {
			log.Error().Err(err).Str("session_code", sessionCode).Msg("failed to build wave envelope")
			return
		}
		if err := s.broadcaster.Broadcast(ctx, env); err != nil {
			// Delivery is best-effort; the remaining waves still go out.
			log.Error().
				Err(err).
				Str("session_code", sessionCode).
				Int("wave_index", i).
				Msg("failed to broadcast wave")
		}
		if i == len(waves)-1 {
			break
		}
		select {
		case <-ctx.Done():
			log.Info().
				Str("session_code", sessionCode).
				Int("waves_emitted", i+1).
				Int("wave_count", len(waves)).
				Msg("reveal abandoned mid-broadcast")
			return
		case <-s.clock.After(s.waveDelay):
		}
	}

	log.Info().
		Str("session_code", sessionCode).
		Int("waves", len(waves)).
		Msg("reveal completed")
}

// finish clears the session's slot only if it still belongs to r. After a
// Reset-then-retrigger, the abandoned goroutine's deferred finish must not
// tear down the reveal that replaced it.
func (s *Scheduler) finish(sessionCode string, r *activeReveal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.reveals[sessionCode]; ok && cur == r {
		cur.cancel()
		delete(s.reveals, sessionCode)
	}
}

// Partition splits cards into consecutive waves of at most waveSize; the
// last wave holds the remainder.
func Partition(cards []models.RevealCard, waveSize int) [][]models.RevealCard {
	var waves [][]models.RevealCard
	for start := 0; start < len(cards); start += waveSize {
		end := min(start+waveSize, len(cards))
		waves = append(waves, cards[start:end])
	}
	return waves
}
