package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/lpsn-scraper/internal/config"
	"github.com/JakeFAU/lpsn-scraper/internal/id/uuid"
	"github.com/JakeFAU/lpsn-scraper/internal/lpsn"
	"github.com/JakeFAU/lpsn-scraper/internal/metrics"
)

// Lister resolves a search word into species records.
type Lister interface {
	List(ctx context.Context, word string) ([]lpsn.Species, error)
}

// Server wires HTTP handlers to the scraper.
type Server struct {
	router chi.Router
	lister Lister
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(lister Lister, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		lister: lister,
		cfg:    cfg,
		logger: logger,
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(uuid.NewUUIDGenerator()))
	r.Use(tracingMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.NotFound(notFound)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/bateriae", s.listBacteria)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// The only dependency is the upstream site, which is checked per request.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listBacteria(w http.ResponseWriter, r *http.Request) {
	word := r.URL.Query().Get("word")
	records, err := s.lister.List(r.Context(), word)
	if err != nil {
		status := statusForError(err)
		s.logger.Error("list bacteria failed",
			zap.String("word", word),
			zap.Int("status", status),
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.Error(err),
		)
		s.writeError(w, status, err.Error())
		return
	}
	if records == nil {
		records = []lpsn.Species{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

// statusForError maps scraper failures to a gateway status. Every failure
// comes from the upstream site, so none of them is the caller's fault.
func statusForError(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("not found"))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
