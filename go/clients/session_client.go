package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/metadiscourse/metaworkshop/go/internal/models"
)

// SessionClient is a typed wrapper over the session API for one session
// code. Tools and integration harnesses drive whole sessions through it.
type SessionClient struct {
	base        *BaseClient
	sessionCode string
}

// NewSessionClient creates a client bound to one session.
func NewSessionClient(baseURL, sessionCode string) *SessionClient {
	base := NewBaseClient(baseURL)
	base.SetHeader("Content-Type", "application/json")
	return &SessionClient{base: base, sessionCode: sessionCode}
}

// WithAuthority attaches the coordinator credential used by the operation
// routes.
func (c *SessionClient) WithAuthority(token string) *SessionClient {
	c.base.SetHeader("X-Session-Authority", token)
	return c
}

func (c *SessionClient) path(suffix string) string {
	return fmt.Sprintf("/sessions/%s/%s", url.PathEscape(c.sessionCode), suffix)
}

// SubmitCard submits a card through the coordinator operation route.
// Returns true when the card was accepted, false on a dedup conflict.
func (c *SessionClient) SubmitCard(ctx context.Context, text, playerID, phase string) (bool, error) {
	body, err := json.Marshal(map[string]string{
		"text":      text,
		"player_id": playerID,
		"phase":     phase,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal card: %w", err)
	}

	_, err = c.base.Post(ctx, c.path("ops/cards"), bytes.NewReader(body))
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == 409 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// TriggerReveal starts the wave broadcast.
func (c *SessionClient) TriggerReveal(ctx context.Context, playerID string) error {
	_, err := c.base.Post(ctx, c.path("reveal")+"?player_id="+url.QueryEscape(playerID), nil)
	return err
}

// BonkResult mirrors the coordinator bonk response.
type BonkResult struct {
	Detected   bool   `json:"detected"`
	ClusterID  string `json:"cluster_id"`
	ComboCount int    `json:"combo_count"`
	Timestamp  int64  `json:"timestamp"`
}

// BonkCard records a bonk through the coordinator operation route.
func (c *SessionClient) BonkCard(ctx context.Context, clusterID, playerID string) (BonkResult, error) {
	body, err := json.Marshal(map[string]string{
		"cluster_id": clusterID,
		"player_id":  playerID,
	})
	if err != nil {
		return BonkResult{}, fmt.Errorf("failed to marshal bonk: %w", err)
	}

	data, err := c.base.Post(ctx, c.path("ops/bonks"), bytes.NewReader(body))
	if err != nil {
		return BonkResult{}, err
	}

	var result BonkResult
	if err := json.Unmarshal(data, &result); err != nil {
		return BonkResult{}, fmt.Errorf("failed to unmarshal bonk result: %w", err)
	}
	return result, nil
}

// ListCards fetches the reveal projection of the session's cards.
func (c *SessionClient) ListCards(ctx context.Context) ([]models.RevealCard, error) {
	data, err := c.base.Get(ctx, c.path("cards"))
	if err != nil {
		return nil, err
	}
	var cards []models.RevealCard
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cards: %w", err)
	}
	return cards, nil
}

// Summary fetches the session summary projection.
func (c *SessionClient) Summary(ctx context.Context) (models.SessionSummary, error) {
	data, err := c.base.Get(ctx, c.path("summary.json"))
	if err != nil {
		return models.SessionSummary{}, err
	}
	var summary models.SessionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return models.SessionSummary{}, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return summary, nil
}
