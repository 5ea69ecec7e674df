// Package server is the embedded local HTTP server: the frontend bridge, the
// single-instance command endpoints and the JSON API.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/events"
	"github.com/outclash/outclash-go/internal/lifecycle"
	"github.com/outclash/outclash-go/internal/observability"
	"github.com/outclash/outclash-go/internal/storage"
	"github.com/outclash/outclash-go/internal/updatecheck"
)

// DefaultPort is the embedded server's port unless overridden.
const DefaultPort = 33331

//go:embed static
var staticFiles embed.FS

// Controller is the application surface exposed over HTTP.
type Controller interface {
	ShowWindow() bool
	HandleDeepLink(param string)
	Uptime() time.Duration
	RunningMode() string
	SystemInfo() string
	RestartCore(ctx context.Context) error
	RestartApp()
	ChangeMode(ctx context.Context, mode string) error
	Imports(limit int) ([]*storage.ImportRecord, error)
	VersionInfo() updatecheck.Info
}

// Config wires a Server.
type Config struct {
	Addr          string
	Controller    Controller
	Readiness     *lifecycle.ReadinessState
	Emitter       *events.Emitter
	Observability *observability.Manager
	Logger        *zap.SugaredLogger
	// Heartbeat is the SSE keep-alive period.
	Heartbeat time.Duration
}

// Server provides the local HTTP endpoints with a chi router.
type Server struct {
	cfg    Config
	logger *zap.SugaredLogger
	router *chi.Mux

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
}

// New creates a server. Call Start to listen.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = fmt.Sprintf("127.0.0.1:%d", DefaultPort)
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger.With("type", "server"),
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	if obs := s.cfg.Observability; obs != nil && obs.Metrics() != nil {
		s.router.Use(obs.Metrics().HTTPMiddleware())
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.httpLoggingMiddleware())

	s.router.Get("/commands/ping", s.handlePing)
	s.router.Get("/commands/visible", s.handleVisible)
	s.router.Get("/commands/scheme", s.handleScheme)

	s.router.Post("/ui/stage", s.handleStage)
	s.router.Get("/ui/ready", s.handleReady)
	s.router.Method(http.MethodGet, "/events", http.HandlerFunc(s.handleSSEEvents))
	s.router.Method(http.MethodHead, "/events", http.HandlerFunc(s.handleSSEEvents))

	if obs := s.cfg.Observability; obs != nil {
		if health := obs.Health(); health != nil {
			s.router.Get("/healthz", health.HealthzHandler())
		}
		if metrics := obs.Metrics(); metrics != nil {
			metricsHandler := metrics.Handler()
			s.router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
				obs.UpdateMetrics()
				metricsHandler.ServeHTTP(w, r)
			})
		}
	} else {
		s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/uptime", s.handleUptime)
		r.Get("/running-mode", s.handleRunningMode)
		r.Get("/system-info", s.handleSystemInfo)
		r.Post("/core/restart", s.handleRestartCore)
		r.Post("/app/restart", s.handleRestartApp)
		r.Put("/mode", s.handleChangeMode)
		r.Get("/imports", s.handleImports)
		r.Get("/version", s.handleVersion)
	})

	static, err := fs.Sub(staticFiles, "static")
	if err == nil {
		s.router.Handle("/*", http.FileServer(http.FS(static)))
	}
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.http = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Infow("Embedded server listening", "addr", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorw("Embedded server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// URL returns the base URL of the server.
func (s *Server) URL() string {
	return "http://" + s.Addr() + "/"
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.http = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) httpLoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			s.logger.Debugw("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

func parseLimit(r *http.Request, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
