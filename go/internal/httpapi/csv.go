package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// The CSV exports reproduce the upstream backend's format exactly: fixed
// headers, the free-form text field always quoted with internal quotes
// doubled, every other field written bare. encoding/csv would quote
// conditionally, so the rows are written by hand.

func quoteCSVText(text string) string {
	return `"` + strings.ReplaceAll(text, `"`, `""`) + `"`
}

func writeCSV(w http.ResponseWriter, filename string, body string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		log.Error().Err(err).Msg("failed to write CSV response")
	}
}

// handleCardsCSV exports the full card rows.
// Header: session_code,text,player_id,phase,cleaned
func (s *Service) handleCardsCSV(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	cards, err := s.store.GetCardRows(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to export cards")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "storage failure"})
		return
	}

	var b strings.Builder
	b.WriteString("session_code,text,player_id,phase,cleaned\n")
	for _, c := range cards {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s\n",
			c.SessionCode, quoteCSVText(c.Text), c.PlayerID, c.Phase, c.Cleaned)
	}
	writeCSV(w, "cards.csv", b.String())
}

// handleBonksCSV exports the full bonk rows.
// Header: session_code,cluster_id,player_id,timestamp
func (s *Service) handleBonksCSV(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	bonks, err := s.store.GetBonkRows(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to export bonks")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "storage failure"})
		return
	}

	var b strings.Builder
	b.WriteString("session_code,cluster_id,player_id,timestamp\n")
	for _, bonk := range bonks {
		fmt.Fprintf(&b, "%s,%s,%s,%d\n",
			bonk.SessionCode, bonk.ClusterID, bonk.PlayerID, bonk.TimestampMs)
	}
	writeCSV(w, "bonks.csv", b.String())
}
