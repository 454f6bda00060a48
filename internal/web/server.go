// Package web provides the HTTP API and the run history page.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/dayroster/internal/config"
	"github.com/JonMunkholm/dayroster/internal/core"
	webmw "github.com/JonMunkholm/dayroster/internal/web/middleware"
)

// SyncService is the part of core.Service the handlers use.
type SyncService interface {
	RunSync(ctx context.Context, r io.Reader, opts core.SyncOptions) (*core.SyncResult, error)
	ListRuns(ctx context.Context, page, limit int) (*core.RunPage, error)
	GetRun(ctx context.Context, id string) (*core.SyncRun, error)
	ListRoomMappings(ctx context.Context) ([]core.RoomMapping, error)
	GetRoomMapping(ctx context.Context, prefix string) (core.RoomMapping, error)
	CreateRoomMapping(ctx context.Context, in core.RoomMappingInput) (core.RoomMapping, error)
	UpdateRoomMapping(ctx context.Context, prefix string, in core.RoomMappingInput) error
	DeleteRoomMapping(ctx context.Context, prefix string) error
	SyncStatus() core.RunLimiterStatus
}

// Pinger checks a backing dependency for /healthz.
type Pinger func(ctx context.Context) error

// Server is the HTTP server for the roster sync service.
type Server struct {
	service SyncService
	cfg     *config.Config
	ping    Pinger
	router  *chi.Mux
	server  *http.Server
	limits  []*rateLimiter
}

// NewServer wires routes and middleware. ping may be nil.
func NewServer(service SyncService, cfg *config.Config, ping Pinger) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		ping:    ping,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	// The history page shows actors and error text that can name patients.
	s.router.With(webmw.APIKeyAuth(&s.cfg.Security)).Get("/sync", s.handleSyncPage)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(webmw.APIKeyAuth(&s.cfg.Security))

		r.Route("/sync", func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.With(s.newRateLimiter(s.cfg.Rate.SyncLimit, time.Minute).middleware).Post("/", s.handleSync)
			} else {
				r.Post("/", s.handleSync)
			}
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{id}", s.handleGetRun)
		})

		r.Route("/settings/room-mapping", func(r chi.Router) {
			r.Get("/", s.handleListRoomMappings)
			r.Post("/", s.handleCreateRoomMapping)
			r.Get("/{prefix}", s.handleGetRoomMapping)
			r.Put("/{prefix}", s.handleUpdateRoomMapping)
			r.Delete("/{prefix}", s.handleDeleteRoomMapping)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limits {
		l.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status": "ok",
		"sync":   s.service.SyncStatus(),
	}
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			slog.Warn("health check failed", "error", err)
			body["status"] = "degraded"
			writeJSONStatus(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, body)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
