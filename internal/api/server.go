// Package api serves the zoning REST API and the interactive map session
// WebSocket.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/service"
	"github.com/sells-group/zoning-cli/internal/session"
	"github.com/sells-group/zoning-cli/internal/store"
)

// Backend is the parcel data service plus the operational calls the API
// exposes.
type Backend interface {
	service.ParcelDataService
	AuditLog(ctx context.Context, limit int) ([]store.AuditEntry, error)
	Ping(ctx context.Context) error
}

// Options configures the server.
type Options struct {
	AllowedOrigins []string
	Session        session.Config
}

// Server holds the HTTP handlers.
type Server struct {
	backend Backend
	hub     *Hub
	opts    Options
	log     *zap.Logger
}

// NewServer creates a server over backend. Map sessions opened on the
// WebSocket endpoint run against the same backend.
func NewServer(backend Backend, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		backend: backend,
		hub:     NewHub(backend, opts.Session, opts.AllowedOrigins),
		opts:    opts,
		log:     zap.L().With(zap.String("component", "api")),
	}
}

// Hub returns the WebSocket session hub.
func (s *Server) Hub() *Hub { return s.hub }

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Use(s.requestLogger)
		api.Get("/parcels", s.handleListParcels)
		api.Put("/parcels/zoning", s.handleUpdateZoning)
		api.Get("/zoning-types", s.handleZoningTypes)
		api.Post("/stats", s.handleStats)
		api.Post("/stats/simulate", s.handleSimulate)
		api.Get("/audit", s.handleAudit)
	})

	r.Get("/ws/session", s.hub.ServeHTTP)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
