package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/escrow/internal/logging"
	"github.com/aretw0/escrow/pkg/domain"
	"github.com/aretw0/escrow/pkg/stages"
	"github.com/aretw0/escrow/pkg/tracker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Tracker defines the operations the API needs from the tracker service.
type Tracker interface {
	Catalog() stages.Catalog
	Open(ctx context.Context, req tracker.OpenRequest) (*domain.Transaction, error)
	Get(ctx context.Context, id string) (*domain.Transaction, error)
	List(ctx context.Context) ([]*domain.Transaction, error)
	UpdateTask(ctx context.Context, taskID string, completed bool) (tracker.TaskUpdate, error)
	SetStatus(ctx context.Context, id string, status domain.StageID) (*domain.Transaction, error)
	Timeline(ctx context.Context, id string) (*tracker.Timeline, error)
}

// RequestObserver receives one call per served request.
type RequestObserver interface {
	ObserveHTTP(method, route string, code int, elapsed time.Duration)
}

// Server holds the handler dependencies.
type Server struct {
	Tracker  Tracker
	Streams  *StreamManager
	logger   *slog.Logger
	observer RequestObserver
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures request and error logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithObserver records every request, typically into Prometheus.
func WithObserver(observer RequestObserver) Option {
	return func(s *Server) {
		s.observer = observer
	}
}

// WithStreams shares a StreamManager whose Hooks are registered on the tracker.
func WithStreams(streams *StreamManager) Option {
	return func(s *Server) {
		s.Streams = streams
	}
}

// NewHandler creates the HTTP handler for the tracker.
func NewHandler(t Tracker, opts ...Option) http.Handler {
	s := &Server{
		Tracker: t,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/stages", s.ListStages)

	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", s.ListTransactions)
		r.Post("/", s.OpenTransaction)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetTransaction)
			r.Get("/timeline", s.GetTimeline)
			r.Get("/events", s.SubscribeEvents)
			r.Patch("/status", s.SetStatus)
		})
	})
	r.Patch("/tasks/{id}", s.UpdateTask)

	return r
}

// instrument logs and observes each request once routing has resolved its pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		s.logger.Debug("HTTP request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
		)
		if s.observer != nil {
			s.observer.ObserveHTTP(r.Method, route, status, elapsed)
		}
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
