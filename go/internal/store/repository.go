package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metadiscourse/metaworkshop/go/internal/models"
)

// Repository implements Store on Postgres via pgx.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new session store repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the session tables and the dedup index if they do
// not exist. The unique index on (session_code, cleaned) is what makes
// InsertCardIfAbsent atomic per dedup key.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cards (
			id BIGSERIAL PRIMARY KEY,
			session_code TEXT NOT NULL,
			text TEXT NOT NULL,
			player_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			cleaned TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS cards_session_cleaned_idx
			ON cards (session_code, cleaned)`,
		`CREATE TABLE IF NOT EXISTS bonks (
			id BIGSERIAL PRIMARY KEY,
			session_code TEXT NOT NULL,
			cluster_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			timestamp_ms BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS bonks_session_cluster_ts_idx
			ON bonks (session_code, cluster_id, timestamp_ms)`,
		`CREATE TABLE IF NOT EXISTS combos (
			id BIGSERIAL PRIMARY KEY,
			session_code TEXT NOT NULL,
			cluster_id TEXT NOT NULL,
			combo_count INT NOT NULL,
			timestamp_ms BIGINT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

func (r *Repository) InsertCardIfAbsent(ctx context.Context, card models.Card) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO cards (session_code, text, player_id, phase, cleaned)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_code, cleaned) DO NOTHING`,
		card.SessionCode, card.Text, card.PlayerID, card.Phase, card.Cleaned)
	if err != nil {
		return false, fmt.Errorf("failed to insert card: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) GetCardsBySession(ctx context.Context, sessionCode string) ([]models.RevealCard, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT text, cleaned FROM cards
		WHERE session_code = $1
		ORDER BY id`, sessionCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []models.RevealCard
	for rows.Next() {
		var c models.RevealCard
		if err := rows.Scan(&c.Text, &c.Cleaned); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cards: %w", err)
	}
	return cards, nil
}

func (r *Repository) GetCardRows(ctx context.Context, sessionCode string) ([]models.Card, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT session_code, text, player_id, phase, cleaned FROM cards
		WHERE session_code = $1
		ORDER BY id`, sessionCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query card rows: %w", err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		var c models.Card
		if err := rows.Scan(&c.SessionCode, &c.Text, &c.PlayerID, &c.Phase, &c.Cleaned); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read card rows: %w", err)
	}
	return cards, nil
}

func (r *Repository) InsertBonk(ctx context.Context, bonk models.Bonk) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bonks (session_code, cluster_id, player_id, timestamp_ms)
		VALUES ($1, $2, $3, $4)`,
		bonk.SessionCode, bonk.ClusterID, bonk.PlayerID, bonk.TimestampMs)
	if err != nil {
		return fmt.Errorf("failed to insert bonk: %w", err)
	}
	return nil
}

func (r *Repository) GetBonkRows(ctx context.Context, sessionCode string) ([]models.Bonk, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT session_code, cluster_id, player_id, timestamp_ms FROM bonks
		WHERE session_code = $1
		ORDER BY id`, sessionCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query bonks: %w", err)
	}
	defer rows.Close()

	var bonks []models.Bonk
	for rows.Next() {
		var b models.Bonk
		if err := rows.Scan(&b.SessionCode, &b.ClusterID, &b.PlayerID, &b.TimestampMs); err != nil {
			return nil, fmt.Errorf("failed to scan bonk: %w", err)
		}
		bonks = append(bonks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bonks: %w", err)
	}
	return bonks, nil
}

func (r *Repository) CountRecentBonks(ctx context.Context, sessionCode, clusterID string, sinceMs int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM bonks
		WHERE session_code = $1 AND cluster_id = $2 AND timestamp_ms > $3`,
		sessionCode, clusterID, sinceMs).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent bonks: %w", err)
	}
	return count, nil
}

func (r *Repository) InsertCombo(ctx context.Context, combo models.Combo) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO combos (session_code, cluster_id, combo_count, timestamp_ms)
		VALUES ($1, $2, $3, $4)`,
		combo.SessionCode, combo.ClusterID, combo.ComboCount, combo.TimestampMs)
	if err != nil {
		return fmt.Errorf("failed to insert combo: %w", err)
	}
	return nil
}

func (r *Repository) GetCombosBySession(ctx context.Context, sessionCode string) ([]models.Combo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT session_code, cluster_id, combo_count, timestamp_ms FROM combos
		WHERE session_code = $1
		ORDER BY id`, sessionCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query combos: %w", err)
	}
	defer rows.Close()

	var combos []models.Combo
	for rows.Next() {
		var c models.Combo
		if err := rows.Scan(&c.SessionCode, &c.ClusterID, &c.ComboCount, &c.TimestampMs); err != nil {
			return nil, fmt.Errorf("failed to scan combo: %w", err)
		}
		combos = append(combos, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read combos: %w", err)
	}
	return combos, nil
}

func (r *Repository) CountCards(ctx context.Context, sessionCode string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM cards WHERE session_code = $1`, sessionCode).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return count, nil
}

func (r *Repository) CountBonks(ctx context.Context, sessionCode string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bonks WHERE session_code = $1`, sessionCode).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bonks: %w", err)
	}
	return count, nil
}
