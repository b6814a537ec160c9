// Package server exposes a registry over HTTP.
//
// The command API under /api mirrors the CLI: layers, nodes, links, order,
// tags, export and the topology diagram. Lifecycle events stream to
// websocket clients on /events, and Prometheus metrics are served on
// /metrics when a [metrics.Metrics] is configured.
//
// The registry is single-threaded; every request that touches it holds the
// server mutex for its whole duration.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/stratum/pkg/buildinfo"
	"github.com/matzehuels/stratum/pkg/metrics"
	"github.com/matzehuels/stratum/pkg/pipeline"
	"github.com/matzehuels/stratum/pkg/registry"
	"github.com/matzehuels/stratum/pkg/store"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and event logger.
func WithLogger(l *log.Logger) Option { return func(s *Server) { s.logger = l } }

// WithRunner sets the pipeline runner used for cached exports and diagrams.
func WithRunner(r *pipeline.Runner) Option { return func(s *Server) { s.runner = r } }

// WithStore enables the /api/projects endpoints.
func WithStore(st store.Store) Option { return func(s *Server) { s.store = st } }

// WithMetrics enables /metrics and feeds m from the registry's events.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Server) { s.metrics = m } }

// Server serves one registry.
type Server struct {
	mu       sync.Mutex
	reg      *registry.Registry
	runner   *pipeline.Runner
	store    store.Store
	metrics  *metrics.Metrics
	logger   *log.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

// New creates a server for reg.
func New(reg *registry.Registry, opts ...Option) *Server {
	s := &Server{
		reg:    reg,
		logger: log.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = pipeline.NewRunner(nil, nil, s.logger)
	}
	if s.metrics != nil {
		s.metrics.Watch(reg.Bus())
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthJSON{Status: "ok", Build: buildinfo.Get()})
	})
	r.Get("/events", s.handleEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/document", s.handleGetDocument)
		r.Put("/document", s.handlePutDocument)

		r.Get("/layers", s.handleListLayers)
		r.Post("/layers", s.handleAddLayer)
		r.Route("/layers/{layer}", func(r chi.Router) {
			r.Get("/", s.handleGetLayer)
			r.Patch("/", s.handlePatchLayer)
			r.Delete("/", s.handleRemoveLayer)
			r.Post("/nodes", s.handleAddNode)
			r.Patch("/nodes/{node}", s.handlePatchNode)
			r.Delete("/nodes/{node}", s.handleRemoveNode)
			r.Post("/links", s.handleAddLink)
			r.Delete("/links/{node}/{port}", s.handleRemoveLink)
		})

		r.Get("/order", s.handleGetOrder)
		r.Put("/order", s.handleSetOrder)
		r.Get("/tags", s.handleTags)
		r.Post("/update", s.handleUpdate)
		r.Post("/export", s.handleExport)
		r.Get("/graph", s.handleGraph)

		if s.store != nil {
			r.Get("/projects", s.handleListProjects)
			r.Post("/projects/{name}", s.handleSaveProject)
			r.Put("/projects/{name}", s.handleLoadProject)
			r.Delete("/projects/{name}", s.handleDeleteProject)
		}
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"id", middleware.GetReqID(r.Context()))
	})
}
