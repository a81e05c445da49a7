package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/hazard-sync/internal/domain"
)

const (
	defaultThreatLimit = 100
	maxThreatLimit     = 1000
	sourceLogLimit     = 5
)

type threatsResponse struct {
	Threats []domain.HazardAlert `json:"threats"`
	Count   int                  `json:"count"`
}

// handleThreats lists active alerts, most recent first.
// Query: limit (1..1000, default 100), type (any alias; canonicalized).
func (s *Server) handleThreats(w http.ResponseWriter, r *http.Request) {
	limit := defaultThreatLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxThreatLimit {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}
	filter := domain.AlertFilter{Limit: limit}
	if v := r.URL.Query().Get("type"); strings.TrimSpace(v) != "" {
		filter.Type = domain.CanonicalThreatType(v)
	}

	alerts, err := s.store.ActiveAlerts(r.Context(), filter)
	if err != nil {
		s.logger.Error("list threats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list threats")
		return
	}
	if alerts == nil {
		alerts = []domain.HazardAlert{}
	}
	writeJSON(w, http.StatusOK, threatsResponse{Threats: alerts, Count: len(alerts)})
}

type sourceStatus struct {
	domain.SourceWatermark
	InBackoff  bool                       `json:"in_backoff"`
	RecentLogs []domain.IngestionLogEntry `json:"recent_logs"`
}

// handleSources reports every known source's watermark with its latest
// ingestion log rows.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	watermarks, err := s.store.ListWatermarks(ctx)
	if err != nil {
		s.logger.Error("list watermarks failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}

	now := s.clock.Now()
	out := make([]sourceStatus, 0, len(watermarks))
	for _, wm := range watermarks {
		logs, err := s.store.RecentIngestionLogs(ctx, wm.Source, sourceLogLimit)
		if err != nil {
			s.logger.Error("list ingestion logs failed", "source", wm.Source, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list sources")
			return
		}
		if logs == nil {
			logs = []domain.IngestionLogEntry{}
		}
		out = append(out, sourceStatus{SourceWatermark: wm, InBackoff: wm.InBackoff(now), RecentLogs: logs})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}

func (s *Server) handleSourceLogs(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxThreatLimit {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}

	logs, err := s.store.RecentIngestionLogs(r.Context(), source, limit)
	if err != nil {
		s.logger.Error("list ingestion logs failed", "source", source, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list ingestion logs")
		return
	}
	if logs == nil {
		logs = []domain.IngestionLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": source, "logs": logs})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client gone is not actionable
}
