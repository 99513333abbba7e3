package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/llm"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/pipeline"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/resources"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/retrieval"
)

// Error codes surfaced to clients.
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeModelUnavailable = "MODEL_UNAVAILABLE"
	CodeIndexMissing     = "INDEX_MISSING"
	CodeInternal         = "INTERNAL"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "invalid JSON: "+err.Error())
		return
	}

	result, err := s.runner.Run(r.Context(), &req)
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeChatError maps pipeline failures onto the API error codes. Policy
// outcomes (refusal, escalation, ungrounded) never reach here; only
// validation and infrastructure failures do.
func (s *Server) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pipeline.ErrEmptyMessage), errors.Is(err, pipeline.ErrUnknownMode):
		writeError(w, http.StatusBadRequest, CodeValidationError, err.Error())
	case errors.Is(err, llm.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, CodeModelUnavailable,
			"the generation model is not reachable; try again later")
	case errors.Is(err, retrieval.ErrIndexUnavailable):
		writeError(w, http.StatusServiceUnavailable, CodeIndexMissing,
			"the medical guideline index is unavailable; answers cannot be grounded right now")
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg("chat turn failed")
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, CodeValidationError, "session id is required")
		return
	}
	existed := s.sessions.Reset(id)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"reset":      true,
		"existed":    existed,
	})
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	if s.directory == nil {
		writeError(w, http.StatusServiceUnavailable, CodeInternal, "facility directory is not configured")
		return
	}
	q := resources.Query{
		Type: r.URL.Query().Get("type"),
	}
	if v := r.URL.Query().Get("sector"); v != "" {
		sector, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationError, "sector must be an integer")
			return
		}
		q.Sector = sector
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, CodeValidationError, "limit must be a positive integer")
			return
		}
		q.Limit = limit
	}
	found, err := s.directory.Find(r.Context(), q)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("facility lookup failed")
		writeError(w, http.StatusInternalServerError, CodeInternal, "facility lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"facilities": found,
		"count":      len(found),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"uptime":   time.Since(s.startTime).String(),
		"sessions": s.sessions.Len(),
	})
}

// handleReady probes the configured collaborators. 200 only when all pass;
// 503 with per-component detail otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(s.readyChecks))
	ready := true
	for _, rc := range s.readyChecks {
		if rc.Check(r) {
			components[rc.Name] = "ok"
		} else {
			components[rc.Name] = "unavailable"
			ready = false
		}
	}
	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":     state,
		"components": components,
	})
}
