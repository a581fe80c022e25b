package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/metadiscourse/metaworkshop/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Result is the defined outcome of a submission. A duplicate is not an
// error: it tells the client its text already exists in the session.
type Result int

const (
	ResultAccepted Result = iota
	ResultDuplicate
)

// ErrEmptyText rejects submissions that are empty or whitespace-only
// before any store access.
var ErrEmptyText = errors.New("card text is empty")

// CardWriter is what the engine needs from the session store.
type CardWriter interface {
	InsertCardIfAbsent(ctx context.Context, card models.Card) (bool, error)
}

// Engine normalizes submitted card text and decides accept/reject against
// the session store. The check-then-insert race is pushed down into the
// store's InsertCardIfAbsent, which is atomic per (session_code, cleaned).
type Engine struct {
	store CardWriter
}

// NewEngine creates a new dedup engine.
func NewEngine(store CardWriter) *Engine {
	return &Engine{store: store}
}

// Submit computes the dedup key for text and inserts the card unless the
// key already exists in the session. Exactly one row is written on
// ResultAccepted, none on ResultDuplicate. Storage failures surface to the
// caller unretried; the submitting participant resubmits.
func (e *Engine) Submit(ctx context.Context, sessionCode, text, playerID, phase string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyText
	}

	cleaned := Normalize(text)
	inserted, err := e.store.InsertCardIfAbsent(ctx, models.Card{
		SessionCode: sessionCode,
		Text:        text,
		PlayerID:    playerID,
		Phase:       phase,
		Cleaned:     cleaned,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to submit card: %w", err)
	}
	if !inserted {
		log.Debug().
			Str("session_code", sessionCode).
			Str("cleaned", cleaned).
			Msg("duplicate card rejected")
		return ResultDuplicate, nil
	}
	return ResultAccepted, nil
}
