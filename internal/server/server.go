package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
	"github.com/prateekshukla17/XenCRM-Backend/internal/events"
	"github.com/prateekshukla17/XenCRM-Backend/internal/pipeline"
	"github.com/prateekshukla17/XenCRM-Backend/internal/security"
	"github.com/prateekshukla17/XenCRM-Backend/internal/store"
)

// Pipeline is the slice of the messaging coordinator the admin API drives.
type Pipeline interface {
	Health() pipeline.Health
	TriggerNow(ctx context.Context) (int, error)
	Stats(ctx context.Context) (map[string]int64, error)
}

// CommunicationDirectory covers the admin operations on stored
// communications: enqueue, inspect, and reclaim stuck items.
type CommunicationDirectory interface {
	Create(ctx context.Context, c *domain.Communication) error
	GetByID(ctx context.Context, id string) (*domain.Communication, error)
	SweepStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type Config struct {
	Addr       string
	APIKey     string
	StaleAfter time.Duration
}

// Server is the HTTP admin surface over the messaging pipeline.
type Server struct {
	cfg        Config
	apiKeyHash string

	pipeline Pipeline
	comms    CommunicationDirectory
	counters store.CounterStore
	hub      *events.Hub

	http *http.Server
}

func New(cfg Config, p Pipeline, comms CommunicationDirectory, counters store.CounterStore, hub *events.Hub) *Server {
	s := &Server{
		cfg:        cfg,
		apiKeyHash: security.HashKey(cfg.APIKey),
		pipeline:   p,
		comms:      comms,
		counters:   counters,
		hub:        hub,
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)

	r.Get("/healthz", s.handleLiveness)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.apiKeyAuth)

		r.Route("/messaging", func(r chi.Router) {
			r.Get("/health", s.handlePipelineHealth)
			r.Post("/trigger", s.handleTrigger)
			r.Post("/sweep", s.handleSweep)
			r.Get("/stats", s.handleStats)
			r.Get("/events", s.handleEvents)
		})

		r.Route("/communications", func(r chi.Router) {
			r.Post("/", s.handleCreateCommunication)
			r.Get("/{communicationID}", s.handleGetCommunication)
		})

		r.Get("/campaigns/{campaignID}/counters", s.handleCounters)
	})

	return r
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
