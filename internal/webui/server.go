// Package webui serves the reporting dashboard over the persisted tables.
//
// Routes:
//
//	GET  /                  → HTML dashboard, filters as query parameters
//	GET  /api/options       → filter domain (agents, statuses, lines, dates)
//	GET  /api/dashboard     → KPIs, rankings, trend, distribution, detail rows
//	GET  /api/export        → filtered detail rows as a CSV download
//	POST /api/reload        → drop the cache and re-read the store
//	GET  /api/tables/{name} → one persisted table, read-only
//	GET  /healthz           → liveness
package webui

import (
	"context"
	_ "embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"insurance-dq/internal/dashboard"
	"insurance-dq/internal/storage"
)

// Config controls server startup.
type Config struct {
	Addr           string
	AllowedOrigins []string
	// ExportRPS and ExportBurst throttle the CSV export endpoint.
	ExportRPS   float64
	ExportBurst int
	// TableRowLimit caps rows returned by /api/tables/{name}.
	TableRowLimit int
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.ExportRPS <= 0 {
		c.ExportRPS = 1
	}
	if c.ExportBurst <= 0 {
		c.ExportBurst = 5
	}
	if c.TableRowLimit <= 0 {
		c.TableRowLimit = 1000
	}
}

// Server wraps the router and its dependencies.
type Server struct {
	cfg    Config
	store  *dashboard.Store
	src    storage.Source
	log    *slog.Logger
	router chi.Router
	tmpl   *template.Template
	export *rate.Limiter
	now    func() time.Time
}

// NewServer constructs a Server with routes and the embedded template.
func NewServer(cfg Config, store *dashboard.Store, src storage.Source, log *slog.Logger) *Server {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		store:  store,
		src:    src,
		log:    log,
		router: chi.NewRouter(),
		tmpl:   template.Must(template.New("index").Funcs(funcs).Parse(indexHTML)),
		export: rate.NewLimiter(rate.Limit(cfg.ExportRPS), cfg.ExportBurst),
		now:    time.Now,
	}
	s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(recoverer(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleIndex)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "ok")
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/options", s.handleOptions)
		r.Get("/dashboard", s.handleDashboard)
		r.With(rateLimit(s.export, s.log)).Get("/export", s.handleExport)
		r.Post("/reload", s.handleReload)
		r.Get("/tables/{name}", s.handleTable)
	})
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// indexHTML is the server-rendered dashboard page.
//
//go:embed index.tmpl.html
var indexHTML string
