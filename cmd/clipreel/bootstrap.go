package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clipreel/clipreel/internal/catalog"
	"github.com/clipreel/clipreel/internal/config"
	"github.com/clipreel/clipreel/internal/db"
	"github.com/clipreel/clipreel/internal/ledger"
	"github.com/clipreel/clipreel/internal/logging"
	"github.com/clipreel/clipreel/internal/media"
	"github.com/clipreel/clipreel/internal/render"
	"github.com/clipreel/clipreel/internal/storage"
)

// app holds the collaborators built once per process and shared by the
// commands.
type app struct {
	db      *db.DB
	catalog catalog.Store
	objects storage.ObjectStore
	fsStore *storage.FSStore
	ledger  *ledger.SQLiteLedger
	doctor  *media.Doctor
	service *render.Service

	closers []func()
}

func buildApp(ctx context.Context, cfg *config.EnvConfig, logger *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = database
	a.closers = append(a.closers, func() { database.Close() })
	a.ledger = ledger.NewSQLiteLedger(database.Conn())

	switch cfg.CatalogDriver() {
	case config.DriverMongo:
		ms, err := catalog.NewMongoStore(ctx, cfg.MongoURI(), cfg.DBName())
		if err != nil {
			return nil, err
		}
		a.catalog = ms
		a.closers = append(a.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ms.Close(closeCtx)
		})
		logger.Info("catalog connected", "driver", config.DriverMongo, "database", cfg.DBName())
	default:
		a.catalog = catalog.NewSQLiteStore(database.Conn())
		logger.Info("catalog ready", "driver", config.DriverSQLite, "path", logging.SanitizePath(cfg.DBPath()))
	}

	switch cfg.StorageDriver() {
	case config.DriverS3:
		s3, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:          cfg.AWSRegion(),
			Bucket:          cfg.Bucket(),
			AccessKeyID:     cfg.AWSAccessKeyID(),
			SecretAccessKey: cfg.AWSSecretKey(),
			Endpoint:        cfg.S3Endpoint(),
			UsePathStyle:    cfg.S3PathStyle(),
		})
		if err != nil {
			return nil, err
		}
		a.objects = s3
		logger.Info("object storage ready",
			"driver", config.DriverS3,
			"bucket", cfg.Bucket(),
			"access_key", logging.SanitizeToken(cfg.AWSAccessKeyID()),
		)
	default:
		secret := cfg.FSSecret()
		if secret == "" {
			secret = uuid.New().String()
			logger.Warn("no fs signing secret configured, signed links expire with the process", "env", config.EnvFSSecret)
		}
		fs, err := storage.NewFSStore(cfg.FSRoot(), cfg.FSBaseURL(), secret)
		if err != nil {
			return nil, err
		}
		a.objects = fs
		a.fsStore = fs
		logger.Info("object storage ready", "driver", config.DriverFS, "root", logging.SanitizePath(cfg.FSRoot()))
	}

	a.doctor = media.NewDoctor(cfg.FFmpegPath(), cfg.FFprobePath(), logger)
	if caps := a.doctor.Refresh(ctx); caps.Ready() {
		logger.Info("media tools detected", "ffmpeg", caps.FFmpeg.Version, "ffprobe", caps.FFprobe.Version)
	}

	renderer := render.NewPlaylistRenderer(render.RendererConfig{
		Fetcher:      render.NewClipFetcher(a.objects, logger),
		Concatenator: media.NewConcatenator(cfg.FFmpegPath(), cfg.ConcatTimeout(), logger),
		Prober:       media.NewProber(cfg.FFprobePath(), cfg.ProbeTimeout(), logger),
		Publisher:    render.NewResultPublisher(a.objects, cfg.SignedURLTTL(), logger),
		Catalog:      a.catalog,
		Orphans:      a.ledger,
		Logger:       logger,
	})
	a.service = render.NewService(render.ServiceConfig{
		Catalog:      a.catalog,
		Renderer:     renderer,
		Runs:         a.ledger,
		WorkspaceDir: cfg.WorkspaceDir(),
		Concurrency:  cfg.RenderConcurrency(),
		Logger:       logger,
	})

	ok = true
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
