package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"purchaseflow/internal/analytics"
	"purchaseflow/internal/core"
	"purchaseflow/internal/log"
	"purchaseflow/internal/middleware/ratelimit"
	"purchaseflow/internal/middleware/security"
	"purchaseflow/internal/remote"
	"purchaseflow/internal/store"
)

// PurchaseStore is the part of the Data Store the handlers use.
type PurchaseStore interface {
	Mode() store.Mode
	Snapshot() store.Snapshot
	FetchAll(ctx context.Context) store.Snapshot
	CreatePurchase(ctx context.Context, np core.NewPurchase) (core.Purchase, error)
	DeletePurchase(ctx context.Context, id core.ID) error
}

// Reports serves the period reports computed by the purchases API.
type Reports interface {
	TopProduct(ctx context.Context, r analytics.DateRange) (remote.TopProductReport, error)
	Bilan(ctx context.Context, r analytics.DateRange) (remote.BilanReport, error)
}

type Server struct {
	http.Server
	store     PurchaseStore
	reports   Reports
	present   presenter
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	ipExtract *security.IPExtractor

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithReports makes /api/top and /api/bilan ask the API while the store
// is in remote mode.
func WithReports(r Reports) Option {
	return func(s *Server) { s.reports = r }
}

// WithFormatter sets the locale formatter used for display strings.
func WithFormatter(f *core.Formatter) Option {
	return func(s *Server) { s.present = presenter{f: f} }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Server) { s.logger = logger.WithComponent(log.ComponentHTTP) }
}

// WithRateLimit caps write requests per client per minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: perMinute})
	}
}

// WithIPExtractor sets how client addresses are read behind proxies.
func WithIPExtractor(e *security.IPExtractor) Option {
	return func(s *Server) { s.ipExtract = e }
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, st PurchaseStore, opts ...Option) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:   st,
		present: presenter{f: core.NewFormatter(core.DefaultCurrency)},
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	if s.ipExtract == nil {
		s.ipExtract = security.MustNewIPExtractor()
	}

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(log.Middleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/history", s.handleHistory)
		r.Get("/top", s.handleTop)
		r.Get("/bilan", s.handleBilan)
		r.Get("/chart", s.handleChart)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(s.ipExtract.ClientIP, func(w http.ResponseWriter, r *http.Request) {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
					log.FieldClientIP, s.ipExtract.ClientIP(r))
				TooManyRequestsError().Write(w)
			}))
			r.Post("/purchases", s.handleCreatePurchase)
			r.Delete("/purchases/{id}", s.handleDeletePurchase)
			r.Post("/refresh", s.handleRefresh)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})
	return r
}

// Shutdown stops the rate limiter then the HTTP server. It runs once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]store.Mode{"mode": s.store.Mode()}).Write(w)
}
