package httpapi

import (
	"net/http"

	"github.com/metadiscourse/metaworkshop/go/internal/dedup"
	"github.com/metadiscourse/metaworkshop/go/internal/session"
	"github.com/metadiscourse/metaworkshop/go/internal/store"
	"github.com/rs/zerolog/log"
)

// AuthorityHeader carries the coordinator credential on operation routes.
// The transport layer, not this engine, decides who holds authority; here
// that decision arrives as a shared token configured per deployment.
const AuthorityHeader = "X-Session-Authority"

// Service serves the session-scoped HTTP API: the storage surface used by
// participants and exports, plus the coordinator operation routes.
type Service struct {
	store          store.Store
	dedup          *dedup.Engine
	coordinator    *session.Coordinator
	authorityToken string
}

// NewService creates the HTTP API service.
func NewService(st store.Store, engine *dedup.Engine, coordinator *session.Coordinator, authorityToken string) *Service {
	return &Service{
		store:          st,
		dedup:          engine,
		coordinator:    coordinator,
		authorityToken: authorityToken,
	}
}

// RegisterRoutes registers every API route on the mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	// Storage surface (mirrors the upstream backend).
	mux.HandleFunc("POST /sessions/{code}/cards", s.handleSubmitCard)
	mux.HandleFunc("GET /sessions/{code}/cards", s.handleListCards)
	mux.HandleFunc("POST /sessions/{code}/bonks", s.handleRecordBonk)
	mux.HandleFunc("POST /sessions/{code}/combos", s.handleRecordCombo)
	mux.HandleFunc("GET /sessions/{code}/cards.csv", s.handleCardsCSV)
	mux.HandleFunc("GET /sessions/{code}/bonks.csv", s.handleBonksCSV)
	mux.HandleFunc("GET /sessions/{code}/summary.json", s.handleSummary)

	// Coordinator operations (authority-gated).
	mux.HandleFunc("POST /sessions/{code}/reveal", s.handleTriggerReveal)
	mux.HandleFunc("POST /sessions/{code}/ops/cards", s.handleCoordinatorSubmit)
	mux.HandleFunc("POST /sessions/{code}/ops/bonks", s.handleCoordinatorBonk)

	mux.HandleFunc("/health", s.handleHealth)

	log.Info().Msg("session API routes registered")
}

// sessionContext builds the per-operation caller context. The authority
// flag comes from the shared-token header; a missing or wrong token means
// the caller is not the coordinator.
func (s *Service) sessionContext(r *http.Request, playerID string) session.Context {
	return session.Context{
		SessionCode: r.PathValue("code"),
		PlayerID:    playerID,
		IsAuthority: s.authorityToken != "" && r.Header.Get(AuthorityHeader) == s.authorityToken,
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
