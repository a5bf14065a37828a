package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
	"github.com/prateekshukla17/XenCRM-Backend/internal/logging"
	"github.com/prateekshukla17/XenCRM-Backend/internal/pipeline"
	"github.com/prateekshukla17/XenCRM-Backend/internal/store"
)

const defaultMaxAttempts = 3

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePipelineHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.pipeline.Health())
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	n, err := s.pipeline.TriggerNow(r.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrNotRunning) {
			errorJSON(w, http.StatusConflict, "pipeline is not running")
			return
		}
		logging.FromContext(r.Context()).Error("manual trigger failed",
			slog.String("code", "DB_ERROR"), slog.Any("error", err))
		errorJSON(w, http.StatusInternalServerError, "trigger failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"dispatched": n})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	n, err := s.comms.SweepStale(r.Context(), s.cfg.StaleAfter)
	if err != nil {
		logging.FromContext(r.Context()).Error("stale sweep failed",
			slog.String("code", "DB_ERROR"), slog.Any("error", err))
		errorJSON(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	logging.FromContext(r.Context()).Info("stale communications reclaimed",
		slog.String("code", "MSG_SWEEP"), slog.Int64("count", n))
	respondJSON(w, http.StatusOK, map[string]int64{"reclaimed": n})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pipeline.Stats(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("stats query failed",
			slog.String("code", "DB_ERROR"), slog.Any("error", err))
		errorJSON(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"outcomes": stats})
}

func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	counters, err := s.counters.Get(r.Context(), campaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			errorJSON(w, http.StatusNotFound, "no counters for campaign")
			return
		}
		logging.FromContext(r.Context()).Error("counters query failed",
			slog.String("code", "DB_ERROR"), slog.Any("error", err))
		errorJSON(w, http.StatusInternalServerError, "counters unavailable")
		return
	}
	respondJSON(w, http.StatusOK, counters)
}

type createCommunicationRequest struct {
	CampaignID    string `json:"campaign_id"`
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	MessageText   string `json:"message_text"`
	MaxAttempts   int    `json:"max_attempts,omitempty"`
}

func (req *createCommunicationRequest) validate() error {
	if req.CampaignID == "" {
		return errors.New("campaign_id is required")
	}
	if req.CustomerID == "" {
		return errors.New("customer_id is required")
	}
	if _, err := mail.ParseAddress(req.CustomerEmail); err != nil {
		return errors.New("customer_email is not a valid address")
	}
	if req.MessageText == "" {
		return errors.New("message_text is required")
	}
	if req.MaxAttempts < 0 {
		return errors.New("max_attempts must not be negative")
	}
	return nil
}

func (s *Server) handleCreateCommunication(w http.ResponseWriter, r *http.Request) {
	var req createCommunicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := req.validate(); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.MaxAttempts == 0 {
		req.MaxAttempts = defaultMaxAttempts
	}

	now := time.Now().UTC()
	comm := &domain.Communication{
		ID:            uuid.New().String(),
		CampaignID:    req.CampaignID,
		CustomerID:    req.CustomerID,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		MessageText:   req.MessageText,
		Status:        domain.CommunicationStatusPending,
		MaxAttempts:   req.MaxAttempts,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.comms.Create(r.Context(), comm); err != nil {
		logging.FromContext(r.Context()).Error("enqueue communication failed",
			slog.String("code", "DB_ERROR"), slog.Any("error", err))
		errorJSON(w, http.StatusInternalServerError, "could not enqueue communication")
		return
	}

	logging.FromContext(logging.WithCommunication(r.Context(), comm.ID, comm.CampaignID)).
		Info("communication enqueued", slog.String("code", "MSG_ENQUEUED"))
	respondJSON(w, http.StatusCreated, comm)
}

func (s *Server) handleGetCommunication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "communicationID")
	comm, err := s.comms.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			errorJSON(w, http.StatusNotFound, "communication not found")
			return
		}
		logging.FromContext(r.Context()).Error("communication lookup failed",
			slog.String("code", "DB_ERROR"), slog.Any("error", err))
		errorJSON(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	respondJSON(w, http.StatusOK, comm)
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response failed",
			slog.String("code", "SYS_ERROR"), slog.Any("error", err))
	}
}

func errorJSON(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}
