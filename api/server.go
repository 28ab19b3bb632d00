// Package api provides the HTTP API server for the repricing engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"repricer/db/clickhouse"
	"repricer/decision/repricer"
	papi "repricer/pkg/api"
	engerrors "repricer/pkg/errors"
	"repricer/pkg/platform"
)

// Config holds server configuration.
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestSize int64
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024, // 10MB
	}
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	engine     *repricer.Engine
	audit      *clickhouse.AuditStore
	config     *Config
	log        zerolog.Logger
}

// NewServer creates a new API server. audit may be nil when the execution
// history endpoint and the readiness database check are not needed.
func NewServer(engine *repricer.Engine, audit *clickhouse.AuditStore, config *Config, log zerolog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{
		engine: engine,
		audit:  audit,
		config: config,
		log:    log,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(platform.APIKeyMiddleware)
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/simulate", s.handleSimulate)
		r.Get("/executions", s.handleExecutions)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Info().Int("port", s.config.Port).Msg("repricer API server starting")
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts the server and drains it on SIGINT or
// SIGTERM.
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.log.Info().Msg("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "1.0.0",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.audit != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.audit.Ping(ctx); err != nil {
			s.jsonError(w, http.StatusServiceUnavailable, "audit database not ready")
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

// EvaluateRequest is the API request for a single pricing evaluation.
type EvaluateRequest struct {
	TenantID   string               `json:"tenant_id"`
	StrategyID string               `json:"strategy_id,omitempty"`
	Context    *papi.PricingContext `json:"context"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.TenantID == "" || req.Context == nil {
		s.jsonError(w, http.StatusBadRequest, "tenant_id and context are required")
		return
	}

	result, err := s.engine.Evaluate(r.Context(), req.TenantID, req.Context, req.StrategyID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// SimulateRequest is the API request for a batch dry run.
type SimulateRequest struct {
	TenantID   string                 `json:"tenant_id"`
	StrategyID string                 `json:"strategy_id,omitempty"`
	Contexts   []*papi.PricingContext `json:"contexts"`
}

// SimulateResponse pairs each context's product with its dry-run result.
type SimulateResponse struct {
	Results []*papi.PricingResult `json:"results"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.TenantID == "" || len(req.Contexts) == 0 {
		s.jsonError(w, http.StatusBadRequest, "tenant_id and contexts are required")
		return
	}

	results, err := s.engine.Simulate(r.Context(), req.TenantID, req.Contexts, req.StrategyID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, SimulateResponse{Results: results})
}

func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.jsonError(w, http.StatusNotImplemented, "execution history is not configured")
		return
	}

	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		s.jsonError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	productID := r.URL.Query().Get("product_id")

	records, err := s.audit.RecentExecutions(r.Context(), tenantID, productID, 100)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list executions: %v", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, records)
}

// writeEngineError maps engine errors to HTTP statuses: invalid input is a
// client error, an infeasible constraint band is unprocessable, everything
// else is internal.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var ee *engerrors.EngineError
	if errors.As(err, &ee) {
		switch ee.Code {
		case engerrors.ErrCodeInvalidContext:
			s.jsonError(w, http.StatusBadRequest, ee.Message)
			return
		case engerrors.ErrCodeConstraintInfeasible:
			s.jsonError(w, http.StatusUnprocessableEntity, ee.Message)
			return
		}
	}
	s.log.Error().Err(err).Msg("evaluation failed")
	s.jsonError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
