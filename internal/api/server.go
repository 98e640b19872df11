package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/clipreel/clipreel/internal/ledger"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Addr      string
	Renderer  Renderer
	Ledger    ledger.Ledger // optional, enables /api/renders and /api/orphans
	Doctor    ToolChecker   // optional
	Objects   SignedObjects // optional, serves /objects/* for the fs store
	Logger    *slog.Logger
	StartTime time.Time
	Version   string

	// History and Signer together enable /api/render-files.
	History      RenderHistory
	Signer       URLSigner
	SignedURLTTL time.Duration
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			// Renders run inside the request, so no write timeout.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
