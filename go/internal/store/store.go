package store

import (
	"context"

	"github.com/metadiscourse/metaworkshop/go/internal/models"
)

// Store is the session-scoped persistence layer for cards, bonks, and
// combos. All reads and writes are keyed by session code; implementations
// must be safe for concurrent callers.
//
// InsertCardIfAbsent is the dedup primitive: the check-then-insert must be
// atomic per (session_code, cleaned) so two concurrent submissions of the
// same normalized text yield exactly one stored card.
type Store interface {
	// InsertCardIfAbsent inserts the card unless a card with the same
	// (session_code, cleaned) already exists. Returns true when the card
	// was inserted, false when it was a duplicate.
	InsertCardIfAbsent(ctx context.Context, card models.Card) (bool, error)

	// GetCardsBySession returns the reveal projection of every card in the
	// session, insertion order.
	GetCardsBySession(ctx context.Context, sessionCode string) ([]models.RevealCard, error)

	// GetCardRows returns full card rows for export.
	GetCardRows(ctx context.Context, sessionCode string) ([]models.Card, error)

	// InsertBonk appends a bonk row.
	InsertBonk(ctx context.Context, bonk models.Bonk) error

	// GetBonkRows returns full bonk rows for export, insertion order.
	GetBonkRows(ctx context.Context, sessionCode string) ([]models.Bonk, error)

	// CountRecentBonks counts bonks for (session_code, cluster_id) with
	// timestamp strictly greater than sinceMs.
	CountRecentBonks(ctx context.Context, sessionCode, clusterID string, sinceMs int64) (int, error)

	// InsertCombo appends a combo row.
	InsertCombo(ctx context.Context, combo models.Combo) error

	// GetCombosBySession returns all combo rows for the session.
	GetCombosBySession(ctx context.Context, sessionCode string) ([]models.Combo, error)

	// CountCards returns the number of cards in the session.
	CountCards(ctx context.Context, sessionCode string) (int, error)

	// CountBonks returns the number of bonks in the session.
	CountBonks(ctx context.Context, sessionCode string) (int, error)
}
