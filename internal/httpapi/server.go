package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/apimonitor/internal/domain"
	apimw "github.com/hamed0406/apimonitor/internal/httpapi/middleware"
	"github.com/hamed0406/apimonitor/internal/metrics"
	"github.com/hamed0406/apimonitor/internal/repo"
	"github.com/hamed0406/apimonitor/internal/scheduler"
	"github.com/hamed0406/apimonitor/internal/stats"
)

// Store is the persistence the API reads and writes.
type Store interface {
	repo.TargetStore
	repo.HistoryStore
	repo.StateStore
}

// Engine is the part of the scheduler the API drives.
type Engine interface {
	Register(ctx context.Context, t domain.Target) error
	Deregister(id domain.TargetID) bool
	CheckNow(ctx context.Context, id domain.TargetID) (domain.CheckOutcome, error)
	State(id domain.TargetID) (domain.TargetState, bool)
	Stats() scheduler.Stats
}

// StatsSource serves the read-only aggregate views.
type StatsSource interface {
	Summary(ctx context.Context, id domain.TargetID, window time.Duration) (stats.Summary, error)
	Series(ctx context.Context, id domain.TargetID, window time.Duration, buckets int) (stats.Series, error)
	Incidents(ctx context.Context, id domain.TargetID, window time.Duration) ([]stats.Incident, error)
	DailyReport(ctx context.Context) (stats.DailyReport, error)
}

type SystemSource interface {
	Snapshot(ctx context.Context) metrics.SystemStatus
}

// PatternDeleter drops cached entries, e.g. the stats of a changed target.
type PatternDeleter interface {
	DeletePattern(ctx context.Context, pattern string) error
}

type Server struct {
	Logger   *zap.Logger
	Store    Store
	Engine   Engine
	Stats    StatsSource
	Defaults domain.Defaults

	metrics http.Handler
	system  SystemSource
	events  http.HandlerFunc
	clients func() int
	cache   PatternDeleter
	now     func() time.Time
}

type Option func(*Server)

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

func WithSystem(src SystemSource) Option { return func(s *Server) { s.system = src } }

// WithEvents mounts the WebSocket upgrade handler at /api/events/ws. clients
// reports the number of connected listeners for /api/system.
func WithEvents(h http.HandlerFunc, clients func() int) Option {
	return func(s *Server) {
		s.events = h
		s.clients = clients
	}
}

func WithCache(c PatternDeleter) Option { return func(s *Server) { s.cache = c } }

func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

func NewServer(l *zap.Logger, store Store, eng Engine, st StatsSource, defaults domain.Defaults, opts ...Option) *Server {
	s := &Server{
		Logger:   l,
		Store:    store,
		Engine:   eng,
		Stats:    st,
		Defaults: defaults,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the HTTP handler. Reads need a public or admin key, writes
// an admin key; each class has its own per-IP rate limit.
func (s *Server) Router(keys apimw.Keys, origins []string, publicRPM, publicBurst, adminRPM, adminBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.accessLog)
	r.Use(corsHandler(origins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		// read-only
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(publicRPM, publicBurst))
			r.Use(apimw.RequireAny(keys))

			r.Get("/targets", s.handleListTargets)
			r.Get("/targets/{id}", s.handleGetTarget)
			r.Get("/targets/{id}/state", s.handleState)
			r.Get("/targets/{id}/history", s.handleHistory)
			r.Get("/targets/{id}/stats", s.handleStats)
			r.Get("/targets/{id}/series", s.handleSeries)
			r.Get("/targets/{id}/incidents", s.handleIncidents)
			r.Get("/reports/daily", s.handleDailyReport)
			r.Get("/system", s.handleSystem)
			if s.events != nil {
				r.Get("/events/ws", s.events)
			}
		})

		// admin
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(adminRPM, adminBurst))
			r.Use(apimw.RequireAdmin(keys))

			r.Post("/targets", s.handleAddTarget)
			r.Put("/targets/{id}", s.handleUpdateTarget)
			r.Delete("/targets/{id}", s.handleDeleteTarget)
			r.Post("/targets/{id}/pause", s.handlePause)
			r.Post("/targets/{id}/resume", s.handleResume)
			r.Post("/targets/{id}/check", s.handleCheckNow)
		})
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
