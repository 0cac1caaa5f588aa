package server

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "kis-board/internal/errors"
	"kis-board/internal/models"
	"kis-board/internal/render"
	"kis-board/internal/resilience"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	portfolio, err := s.deps.Store.Load(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load portfolio")
		http.Error(w, "failed to load portfolio", http.StatusInternalServerError)
		return
	}
	if portfolio.Items == nil {
		portfolio.Items = []models.Holding{}
	}

	raw, err := json.Marshal(portfolio)
	if err != nil {
		http.Error(w, "failed to encode portfolio", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = s.deps.HTML.Page(w, render.PageData{
		Host:           s.cfg.DisplayHost,
		PortfolioJSON:  string(raw),
		IntervalMillis: s.cfg.PollInterval.Milliseconds(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to render page")
	}
}

func (s *Server) handleReplaceItems(w http.ResponseWriter, r *http.Request) {
	var portfolio models.Portfolio
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&portfolio); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.deps.Store.Replace(r.Context(), portfolio); err != nil {
		var ve *apperrors.ValidationError
		if errors.As(err, &ve) {
			s.writeError(w, http.StatusUnprocessableEntity, ve.Error())
			return
		}
		s.log.Error().Err(err).Msg("Failed to replace portfolio")
		s.writeError(w, http.StatusInternalServerError, "failed to save portfolio")
		return
	}

	if portfolio.Items == nil {
		portfolio.Items = []models.Holding{}
	}
	s.writeJSON(w, http.StatusOK, portfolio)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok"}
	if s.deps.Hub != nil && s.deps.Hub.IsStarted() {
		body["watchers"] = s.deps.Hub.SubscriberCount()
		body["stream"] = s.deps.Hub.Metrics()
	}
	if s.deps.Breaker != nil {
		stats := s.deps.Breaker.Stats()
		body["upstream"] = stats
		body["upstream_failure_rate"] = stats.FailureRate()
		if stats.State == resilience.CircuitOpen {
			body["status"] = "degraded"
		}
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
