package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/axintera/axctl/pkg/data"
	"github.com/axintera/axctl/pkg/metrics"
	"github.com/axintera/axctl/pkg/ratelimit"
)

const maxRequestBytes = 1 << 16

type statsRequest struct {
	ProviderID string `json:"provider_id"`
	OK         bool   `json:"ok"`
}

type scoreResponse struct {
	ProviderID string  `json:"provider_id"`
	Served     int64   `json:"served"`
	Success    int64   `json:"success"`
	Score      float64 `json:"score"`
}

func toScoreResponse(id string, s *data.ProviderStat) *scoreResponse {
	return &scoreResponse{ProviderID: id, Served: s.Served, Success: s.Success, Score: s.Score}
}

func makeRouter(db *sql.DB, m *metrics.Metrics, l *ratelimit.Limiter) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /score/{provider_id}", scoreAPIHandler(db))
	mux.HandleFunc("GET /scores", scoresAPIHandler(db))
	mux.HandleFunc("POST /stats", statsAPIHandler(db, m, l))
	mux.HandleFunc("GET /healthz", healthAPIHandler(db))
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	return instrument(m, mux, ratelimit.Middleware(l, mux))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// scoreAPIHandler echoes the provider id as requested.
func scoreAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("provider_id")
		s, err := data.GetStat(db, id)
		if err != nil {
			if errors.Is(err, data.ErrNotFound) {
				writeError(w, http.StatusNotFound, "provider not found")
				return
			}
			slog.Error("failed to get provider stat", "provider", id, "error", err)
			writeError(w, http.StatusInternalServerError, "error getting provider score")
			return
		}
		writeJSON(w, http.StatusOK, toScoreResponse(id, s))
	}
}

func scoresAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		list, err := data.ListStats(db)
		if err != nil {
			slog.Error("failed to list provider stats", "error", err)
			writeError(w, http.StatusInternalServerError, "error listing provider scores")
			return
		}
		out := make([]*scoreResponse, 0, len(list))
		for _, s := range list {
			out = append(out, toScoreResponse(s.ProviderID, s))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// statsAPIHandler records one outcome. Besides the per-client limit each
// provider has its own bucket, so one busy reporter cannot flood a provider's stats.
func statsAPIHandler(db *sql.DB, m *metrics.Metrics, l *ratelimit.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statsRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.ProviderID) == "" {
			writeError(w, http.StatusBadRequest, "provider_id required")
			return
		}
		if !l.Allow(ratelimit.ScopeProvider, data.NormalizeProviderID(req.ProviderID)) {
			ratelimit.Reject(w)
			return
		}

		s, err := data.UpdateStats(db, req.ProviderID, req.OK)
		if err != nil {
			slog.Error("failed to update provider stat", "provider", req.ProviderID, "error", err)
			writeError(w, http.StatusInternalServerError, "error updating provider stats")
			return
		}
		m.ObserveStat(req.OK)
		writeJSON(w, http.StatusOK, toScoreResponse(req.ProviderID, s))
	}
}

func healthAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument counts the requests served by next, rate limited ones included,
// by the route mux matches so path values stay out of the labels.
func instrument(m *metrics.Metrics, mux *http.ServeMux, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		m.ObserveRequest(pattern, rec.status)
	})
}
