// Package httpapi wires the HTTP surface of the ledger service.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/txledger/internal/service/transaction"
)

// Server wires handlers and middleware using Chi.
type Server struct {
	svc     transaction.Service
	ready   []ReadyChecker
	timeout time.Duration
	log     *slog.Logger
	rt      *chi.Mux
}

// Option configures the server.
type Option func(*Server)

// WithRequestTimeout bounds each request's context. Zero disables the limit.
func WithRequestTimeout(d time.Duration) Option { return func(s *Server) { s.timeout = d } }

// WithReadyCheckers registers dependencies probed by /readyz.
func WithReadyCheckers(rc ...ReadyChecker) Option {
	return func(s *Server) { s.ready = append(s.ready, rc...) }
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request/response logging and panic recovery.
func New(svc transaction.Service, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{svc: svc, log: logger, rt: chi.NewRouter()}
	for _, o := range opts {
		o(s)
	}
	s.rt.Use(chimw.RequestID)
	s.rt.Use(metricsMiddleware)
	s.rt.Use(requestLogger(logger))
	s.rt.Use(recoverer(logger))
	s.rt.Use(cors)
	if s.timeout > 0 {
		s.rt.Use(chimw.Timeout(s.timeout))
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	s.rt.Route("/api/transactions", func(r chi.Router) {
		r.With(s.validateTransactionBody).Post("/", s.postTransaction)
		r.With(s.validatePageQuery).Get("/", s.listTransactions)
		r.Get("/user/{userId}", s.listUserTransactions)
		r.Get("/{id}", s.getTransaction)
		r.With(s.validateTransactionBody).Put("/{id}", s.putTransaction)
		r.Delete("/{id}", s.deleteTransaction)
	})
	s.rt.Get("/api/transaction-types", s.listTransactionTypes)
	s.rt.Get("/api/transaction-types/{code}", s.getTransactionType)
	// Health (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
