// Package server exposes the lifecycle workflows over HTTP. Handlers are a
// thin JSON layer: they decode, call one orchestrator workflow, and encode
// the result or the mapped error.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/choreguild/choreguild/internal/orchestrator"
	"github.com/choreguild/choreguild/internal/stats"
	"github.com/choreguild/choreguild/pkg/clog"
)

// Server is the HTTP front end of the chore daemon.
type Server struct {
	orch    *orchestrator.Orchestrator
	stats   *stats.Memory
	ledger  *stats.PointsLedger
	httpSrv *http.Server
}

func New(host, port string, orch *orchestrator.Orchestrator, st *stats.Memory, ledger *stats.PointsLedger) *Server {
	s := &Server{
		orch:   orch,
		stats:  st,
		ledger: ledger,
	}

	r := chi.NewRouter()
	r.Use(clog.SlogChiMiddleware())
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/chores", s.handleListChores)
		r.Get("/instances", s.handleListInstances)
		r.Get("/stats", s.handleStats)
		r.Route("/chores/{choreID}", func(r chi.Router) {
			r.Get("/instances", s.handleListChoreInstances)
			r.Post("/claim", s.handleClaim)
			r.Post("/approve", s.handleApprove)
			r.Post("/disapprove", s.handleDisapprove)
			r.Post("/undo", s.handleUndo)
			r.Post("/skip", s.handleSkip)
			r.Post("/reset", s.handleReset)
			r.Post("/reschedule", s.handleReschedule)
		})
	})

	s.httpSrv = &http.Server{
		Addr:              net.JoinHostPort(host, port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpSrv.Addr
}
