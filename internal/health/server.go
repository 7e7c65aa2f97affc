// Package health exposes the HTTP health and metrics endpoints.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/defterlab/defter/internal/infra/storage/sqldb"
	"github.com/defterlab/defter/internal/resilience"
)

// Status is the aggregate health state.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusCritical Status = "critical"
)

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	db      *sqldb.DB
	limiter *resilience.Limiter
	server  *http.Server
}

// NewServer creates a new health server.
func NewServer(db *sqldb.DB, limiter *resilience.Limiter, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		db:      db,
		limiter: limiter,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := StatusHealthy
	if err := s.db.Health(ctx); err != nil {
		status = StatusCritical
	}

	w.Header().Set("Content-Type", "application/json")
	if status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(map[string]string{"status": string(status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "up"
	if err := s.db.Health(ctx); err != nil {
		dbStatus = fmt.Sprintf("down: %v", err)
	}
	stats := s.db.Stats()

	report := map[string]any{
		"database": map[string]any{
			"status":           dbStatus,
			"driver":           s.db.Driver(),
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		},
		"rate_budget_remaining": map[string]int{
			"read":   s.limiter.Remaining(resilience.ClassRead),
			"write":  s.limiter.Remaining(resilience.ClassWrite),
			"delete": s.limiter.Remaining(resilience.ClassDelete),
			"heavy":  s.limiter.Remaining(resilience.ClassHeavy),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
