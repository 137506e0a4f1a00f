// Package server exposes the bot's HTTP surface: health checks, the manual
// digest trigger and a small debug view of active conversations.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"plannerbot/internal/digest"
	"plannerbot/internal/store"
)

// CalendarAuth is the slice of the calendar client the HTTP surface needs:
// auth status for health checks and completing the OAuth code exchange.
type CalendarAuth interface {
	IsAuthenticated() bool
	ExchangeCode(ctx context.Context, code string) error
}

type Server struct {
	store      *store.Store
	digest     *digest.Digest
	gcalClient CalendarAuth
	httpSrv    *http.Server
	port       int
}

type Config struct {
	Store      *store.Store
	Digest     *digest.Digest
	GCalClient CalendarAuth
	Port       int
}

func New(cfg Config) *Server {
	s := &Server{
		store:      cfg.Store,
		digest:     cfg.Digest,
		gcalClient: cfg.GCalClient,
		port:       cfg.Port,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealthCheck)
	mux.HandleFunc("GET /today", s.handleToday)
	mux.HandleFunc("GET /conversations", s.handleConversations)
	mux.HandleFunc("GET /oauth/callback", s.handleOAuthCallback)
}

func (s *Server) Start() error {
	fmt.Printf("Starting HTTP server on http://localhost:%d\n", s.port)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the server's HTTP handler for testing purposes
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}
