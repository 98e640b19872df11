package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipreel/clipreel/internal/api"
	"github.com/clipreel/clipreel/internal/config"
	"github.com/clipreel/clipreel/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the render HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.ensureLogger()
			startTime := time.Now()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("starting clipreel",
				"version", config.Version,
				"commit", config.GitCommit,
				"data_dir", logging.SanitizePath(cfg.DataDir()),
			)

			a, err := buildApp(sigCtx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			serverCfg := api.ServerConfig{
				Addr:         cfg.Addr(),
				Renderer:     a.service,
				Ledger:       a.ledger,
				Doctor:       a.doctor,
				Logger:       logger,
				StartTime:    startTime,
				Version:      config.Version,
				History:      a.catalog,
				Signer:       a.objects,
				SignedURLTTL: cfg.SignedURLTTL(),
			}
			if a.fsStore != nil {
				serverCfg.Objects = a.fsStore
			}
			server := api.NewServer(serverCfg)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-sigCtx.Done():
				logger.Info("received shutdown signal")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
}
