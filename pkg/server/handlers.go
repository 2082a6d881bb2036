package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/usegrapevine/grapevine/pkg/pipeline"
)

// healthProbeTimeout bounds the upstream probe so a hung tool server
// cannot stall /healthz.
const healthProbeTimeout = 5 * time.Second

// handleQuery runs one question through the pipeline. A failed run still
// answers with the structured result so clients see the diagnostics.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var q pipeline.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		respondError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	if strings.TrimSpace(q.Text) == "" {
		respondError(w, http.StatusBadRequest, "query text is required")
		return
	}

	result, err := s.runner.Run(r.Context(), q)
	if err != nil {
		slog.Error("query request failed", "error", err)
		if result == nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusInternalServerError, result)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleHealth reports this process plus the upstream tool server. An
// unreachable upstream degrades the answer to 503 but never panics it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	body := map[string]any{"status": "ok"}

	upstream, err := s.prober.Health(ctx)
	if err != nil {
		body["status"] = "degraded"
		body["graph"] = map[string]any{"status": "unreachable", "error": err.Error()}
		respondJSON(w, http.StatusServiceUnavailable, body)
		return
	}

	body["graph"] = upstream
	respondJSON(w, http.StatusOK, body)
}

// handleTools lists the client-side tool catalog.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	tools := s.registry.List()
	respondJSON(w, http.StatusOK, map[string]any{
		"tools": tools,
		"total": len(tools),
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
