package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/DashNode-Org/teranode-monitor/config"
	"github.com/DashNode-Org/teranode-monitor/pkg/metrics"
	"github.com/DashNode-Org/teranode-monitor/pkg/rpc"
	"github.com/DashNode-Org/teranode-monitor/pkg/status"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Server struct {
	cfg       *config.Config
	cache     *status.Cache
	stream    *Stream
	router    *chi.Mux
	startTime time.Time
	httpSrv   *http.Server
	setupOnce sync.Once
}

func NewServer(cfg *config.Config, cache *status.Cache, stream *Stream) *Server {
	return &Server{
		cfg:       cfg,
		cache:     cache,
		stream:    stream,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}
}

func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s.GetHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Msgf("Starting server on %s", s.cfg.ListenAddr())
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.stream != nil {
		s.stream.Close()
	}
	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

// GetHandler returns the http.Handler for testing or custom usage
func (s *Server) GetHandler() http.Handler {
	s.setupOnce.Do(func() {
		s.setupMiddleware()
		s.setupRoutes()
	})
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	// Prometheus Metrics Endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Live updates; kept outside the timeout group since the connection is long lived
	if s.stream != nil {
		s.router.Get("/ws", s.stream.HandleWS)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout + 5*time.Second))

		r.Get("/ready", s.handleReady)
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/health", s.handleHealth)
		r.Get("/api/diagnostics", s.handleDiagnostics)
		r.Get("/", s.handleDashboard)
	})
}

type statusResponse struct {
	status.StatusRecord
	LastErrorKind rpc.ErrorKind `json:"last_error_kind,omitempty"`
	Error         string        `json:"error,omitempty"`
}

type healthResponse struct {
	Healthy     bool  `json:"healthy"`
	BlockHeight int64 `json:"block_height"`
	Connections int64 `json:"connections"`
}

type diagnosticsResponse struct {
	status.Diagnostics
	Uptime float64 `json:"uptime"`
	Node   string  `json:"node"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	metrics.RecordAPIRequest("status")
	snap := s.cache.Snapshot()

	resp := statusResponse{StatusRecord: snap.Record}
	if !snap.Record.Healthy {
		resp.LastErrorKind = snap.Diagnostics.LastErrorKind
		resp.Error = snap.Diagnostics.LastError
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics.RecordAPIRequest("health")
	rec := s.cache.Current()

	// Always 200: consumers read the healthy flag and keep the last good data.
	writeJSON(w, http.StatusOK, healthResponse{
		Healthy:     rec.Healthy,
		BlockHeight: rec.BlockHeight,
		Connections: rec.PeerConnections,
	})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	metrics.RecordAPIRequest("diagnostics")
	snap := s.cache.Snapshot()

	writeJSON(w, http.StatusOK, diagnosticsResponse{
		Diagnostics: snap.Diagnostics,
		Uptime:      time.Since(s.startTime).Seconds(),
		Node:        s.cfg.NodeHost,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.cache.Current().LastSuccessAt != nil {
		w.Write([]byte("READY"))
	} else {
		http.Error(w, "Not Ready", http.StatusServiceUnavailable)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
