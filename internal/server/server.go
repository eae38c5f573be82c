// Package server exposes the dividend service over a small REST API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/dividendos/internal/app"
	"github.com/bobmcallan/dividendos/internal/common"
	"github.com/bobmcallan/dividendos/internal/interfaces"
)

// Server wraps the HTTP server and the services it serves.
type Server struct {
	service interfaces.DividendService
	jobsWS  http.Handler
	config  *common.Config
	logger  *common.Logger
	server  *http.Server
}

// NewServer creates the REST API server for a.
func NewServer(a *app.App) *Server {
	return newServer(a.Config, a.Logger, a.DividendService, http.HandlerFunc(a.JobHub.ServeWS))
}

func newServer(config *common.Config, logger *common.Logger, service interfaces.DividendService, jobsWS http.Handler) *Server {
	s := &Server{
		service: service,
		jobsWS:  jobsWS,
		config:  config,
		logger:  logger,
	}

	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:     s.routes(),
		ReadTimeout: 30 * time.Second,
		// forced refreshes run synchronously and take about a second per company
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
