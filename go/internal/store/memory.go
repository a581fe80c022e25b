package store

import (
	"context"
	"sync"

	"github.com/metadiscourse/metaworkshop/go/internal/models"
)

// Memory is an in-memory Store used by tests and the memory dev backend.
// A single mutex covers every operation, which gives the same per-key
// atomicity for InsertCardIfAbsent as the Postgres unique index.
type Memory struct {
	mu     sync.Mutex
	cards  []models.Card
	bonks  []models.Bonk
	combos []models.Combo
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) InsertCardIfAbsent(_ context.Context, card models.Card) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.SessionCode == card.SessionCode && c.Cleaned == card.Cleaned {
			return false, nil
		}
	}
	m.cards = append(m.cards, card)
	return true, nil
}

func (m *Memory) GetCardsBySession(_ context.Context, sessionCode string) ([]models.RevealCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cards []models.RevealCard
	for _, c := range m.cards {
		if c.SessionCode == sessionCode {
			cards = append(cards, models.RevealCard{Text: c.Text, Cleaned: c.Cleaned})
		}
	}
	return cards, nil
}

func (m *Memory) GetCardRows(_ context.Context, sessionCode string) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cards []models.Card
	for _, c := range m.cards {
		if c.SessionCode == sessionCode {
			cards = append(cards, c)
		}
	}
	return cards, nil
}

func (m *Memory) InsertBonk(_ context.Context, bonk models.Bonk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bonks = append(m.bonks, bonk)
	return nil
}

func (m *Memory) GetBonkRows(_ context.Context, sessionCode string) ([]models.Bonk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var bonks []models.Bonk
	for _, b := range m.bonks {
		if b.SessionCode == sessionCode {
			bonks = append(bonks, b)
		}
	}
	return bonks, nil
}

func (m *Memory) CountRecentBonks(_ context.Context, sessionCode, clusterID string, sinceMs int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, b := range m.bonks {
		if b.SessionCode == sessionCode && b.ClusterID == clusterID && b.TimestampMs > sinceMs {
			count++
		}
	}
	return count, nil
}

func (m *Memory) InsertCombo(_ context.Context, combo models.Combo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.combos = append(m.combos, combo)
	return nil
}

func (m *Memory) GetCombosBySession(_ context.Context, sessionCode string) ([]models.Combo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var combos []models.Combo
	for _, c := range m.combos {
		if c.SessionCode == sessionCode {
			combos = append(combos, c)
		}
	}
	return combos, nil
}

func (m *Memory) CountCards(_ context.Context, sessionCode string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.cards {
		if c.SessionCode == sessionCode {
			count++
		}
	}
	return count, nil
}

func (m *Memory) CountBonks(_ context.Context, sessionCode string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, b := range m.bonks {
		if b.SessionCode == sessionCode {
			count++
		}
	}
	return count, nil
}
