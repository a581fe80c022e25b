package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/metadiscourse/metaworkshop/go/internal/sqlutil"
)

// Repository stages broadcast events in the session_outbox table and hands
// them to the relay. It rides database/sql (not the pgx pool) because the
// relay's LISTEN/NOTIFY side requires the lib/pq listener.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new outbox repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// NotifyChannel is the Postgres channel the relay listens on. Each insert
// notifies with the event id so the relay can fetch exactly that row.
const NotifyChannel = "session_outbox_events"

// EnsureSchema creates the outbox table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS session_outbox (
			id UUID PRIMARY KEY,
			session_code TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			sent_at TIMESTAMPTZ
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure outbox schema: %w", err)
	}
	return nil
}

// txQueries binds outbox statements to one transaction.
type txQueries struct {
	tx *sql.Tx
}

func newTxQueries(tx *sql.Tx) *txQueries {
	return &txQueries{tx: tx}
}

func (q *txQueries) insertEvent(ctx context.Context, event Event) error {
	_, err := q.tx.ExecContext(ctx, `
		INSERT INTO session_outbox (id, session_code, event_type, payload)
		VALUES ($1, $2, $3, $4)`,
		event.ID, event.SessionCode, event.EventType, []byte(event.Payload))
	return err
}

func (q *txQueries) notify(ctx context.Context, id uuid.UUID) error {
	_, err := q.tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, id.String())
	return err
}

// InsertEvent stages one event and notifies the relay, atomically.
func (r *Repository) InsertEvent(ctx context.Context, sessionCode, eventType string, payload json.RawMessage) error {
	event := Event{
		ID:          uuid.New(),
		SessionCode: sessionCode,
		EventType:   eventType,
		Payload:     payload,
	}
	err := sqlutil.Run(ctx, r.db, newTxQueries, func(q *txQueries) error {
		if err := q.insertEvent(ctx, event); err != nil {
			return err
		}
		return q.notify(ctx, event.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// FetchUnsent returns unsent events in insertion order. Insertion order is
// what preserves per-session emission order on the fallback path.
func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_code, event_type, payload, created_at
		FROM session_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var outEvents []Event
	for rows.Next() {
		var e Event
		var payload []byte
		if err := rows.Scan(&e.ID, &e.SessionCode, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		outEvents = append(outEvents, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outbox events: %w", err)
	}
	return outEvents, nil
}

// MarkSent stamps the event as relayed.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE session_outbox SET sent_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}

// FetchByID returns one unsent event by id.
func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var e Event
	var payload []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, session_code, event_type, payload, created_at
		FROM session_outbox
		WHERE id = $1 AND sent_at IS NULL`, id).
		Scan(&e.ID, &e.SessionCode, &e.EventType, &payload, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("outbox event not found or already sent")
		}
		return nil, fmt.Errorf("failed to fetch outbox event by ID: %w", err)
	}
	e.Payload = json.RawMessage(payload)
	return &e, nil
}
