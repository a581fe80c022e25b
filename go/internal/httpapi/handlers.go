package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/metadiscourse/metaworkshop/go/internal/dedup"
	"github.com/metadiscourse/metaworkshop/go/internal/models"
	"github.com/metadiscourse/metaworkshop/go/internal/reveal"
	"github.com/metadiscourse/metaworkshop/go/internal/session"
	"github.com/rs/zerolog/log"
)

type submitCardRequest struct {
	Text     string `json:"text"`
	PlayerID string `json:"player_id"`
	Phase    string `json:"phase"`
}

type recordBonkRequest struct {
	ClusterID string `json:"cluster_id"`
	PlayerID  string `json:"player_id"`
	Timestamp int64  `json:"timestamp"`
}

type recordComboRequest struct {
	ClusterID  string `json:"cluster_id"`
	ComboCount int    `json:"combo_count"`
	Timestamp  int64  `json:"timestamp"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

// handleSubmitCard accepts a card submission, deduplicating on the
// normalized text. 201 on accept, 409 on duplicate.
func (s *Service) handleSubmitCard(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	var req submitCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	result, err := s.dedup.Submit(r.Context(), code, req.Text, req.PlayerID, req.Phase)
	if err != nil {
		if errors.Is(err, dedup.ErrEmptyText) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "card text is empty"})
			return
		}
		log.Error().Err(err).Str("session_code", code).Msg("card submission failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "storage failure"})
		return
	}
	if result == dedup.ResultDuplicate {
		writeJSON(w, http.StatusConflict, errorResponse{Message: "Duplicate card"})
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// handleListCards returns the reveal projection of every card.
func (s *Service) handleListCards(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	cards, err := s.store.GetCardsBySession(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to list cards")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "storage failure"})
		return
	}
	if cards == nil {
		cards = []models.RevealCard{}
	}
	writeJSON(w, http.StatusOK, cards)
}

// handleRecordBonk stores a bonk row as given. This is the raw storage
// surface used for export parity; the combo-detecting path with
// server-assigned timestamps is the coordinator bonk operation.
func (s *Service) handleRecordBonk(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	var req recordBonkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	err := s.store.InsertBonk(r.Context(), models.Bonk{
		SessionCode: code,
		ClusterID:   req.ClusterID,
		PlayerID:    req.PlayerID,
		TimestampMs: req.Timestamp,
	})
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to record bonk")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "storage failure"})
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Service) handleRecordCombo(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	var req recordComboRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	err := s.store.InsertCombo(r.Context(), models.Combo{
		SessionCode: code,
		ClusterID:   req.ClusterID,
		ComboCount:  req.ComboCount,
		TimestampMs: req.Timestamp,
	})
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to record combo")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "storage failure"})
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// handleSummary serves the read-only session summary projection.
func (s *Service) handleSummary(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	ctx := r.Context()

	combos, err := s.store.GetCombosBySession(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to load combos")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "storage failure"})
		return
	}
	numCards, err := s.store.CountCards(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to count cards")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "storage failure"})
		return
	}
	numBonks, err := s.store.CountBonks(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to count bonks")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "storage failure"})
		return
	}

	if combos == nil {
		combos = []models.Combo{}
	}
	writeJSON(w, http.StatusOK, models.SessionSummary{
		NumCards: numCards,
		NumBonks: numBonks,
		Combos:   combos,
	})
}

// handleTriggerReveal starts the wave broadcast for the session.
func (s *Service) handleTriggerReveal(w http.ResponseWriter, r *http.Request) {
	sctx := s.sessionContext(r, r.URL.Query().Get("player_id"))

	err := s.coordinator.TriggerReveal(r.Context(), sctx)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, session.ErrNotAuthority):
		writeJSON(w, http.StatusForbidden, errorResponse{Message: "caller is not the session authority"})
	case errors.Is(err, reveal.ErrRevealActive):
		writeJSON(w, http.StatusConflict, errorResponse{Message: "reveal already active"})
	default:
		log.Error().Err(err).Str("session_code", sctx.SessionCode).Msg("reveal trigger failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "storage failure"})
	}
}

// handleCoordinatorSubmit is the point-to-point SubmitCard operation
// routed to the coordinator.
func (s *Service) handleCoordinatorSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	sctx := s.sessionContext(r, req.PlayerID)

	result, err := s.coordinator.SubmitCard(r.Context(), sctx, req.Text, req.Phase)
	switch {
	case err == nil && result == dedup.ResultAccepted:
		w.WriteHeader(http.StatusCreated)
	case err == nil:
		writeJSON(w, http.StatusConflict, errorResponse{Message: "Duplicate card"})
	case errors.Is(err, session.ErrNotAuthority):
		writeJSON(w, http.StatusForbidden, errorResponse{Message: "caller is not the session authority"})
	case errors.Is(err, dedup.ErrEmptyText):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "card text is empty"})
	default:
		log.Error().Err(err).Str("session_code", sctx.SessionCode).Msg("coordinator submit failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "storage failure"})
	}
}

type coordinatorBonkRequest struct {
	ClusterID string `json:"cluster_id"`
	PlayerID  string `json:"player_id"`
}

type coordinatorBonkResponse struct {
	Detected   bool   `json:"detected"`
	ClusterID  string `json:"cluster_id,omitempty"`
	ComboCount int    `json:"combo_count,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
}

// handleCoordinatorBonk is the point-to-point BonkCard operation: the bonk
// is stamped with the coordinator clock and the combo window re-evaluated.
func (s *Service) handleCoordinatorBonk(w http.ResponseWriter, r *http.Request) {
	var req coordinatorBonkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	sctx := s.sessionContext(r, req.PlayerID)

	result, err := s.coordinator.BonkCard(r.Context(), sctx, req.ClusterID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, coordinatorBonkResponse{
			Detected:   result.Detected,
			ClusterID:  result.ClusterID,
			ComboCount: result.ComboCount,
			Timestamp:  result.TimestampMs,
		})
	case errors.Is(err, session.ErrNotAuthority):
		writeJSON(w, http.StatusForbidden, errorResponse{Message: "caller is not the session authority"})
	default:
		log.Error().Err(err).Str("session_code", sctx.SessionCode).Msg("coordinator bonk failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "storage failure"})
	}
}
