package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/clipreel/clipreel/internal/logging"
	"github.com/clipreel/clipreel/internal/storage"
)

// DefaultSignedURLTTL matches the lifetime of links handed to clients.
const DefaultSignedURLTTL = time.Hour

// ResultPublisher uploads a finished render and signs a read URL for it.
type ResultPublisher struct {
	store  storage.ObjectStore
	ttl    time.Duration
	logger *slog.Logger
}

func NewResultPublisher(store storage.ObjectStore, ttl time.Duration, logger *slog.Logger) *ResultPublisher {
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	return &ResultPublisher{store: store, ttl: ttl, logger: logger}
}

func (p *ResultPublisher) Publish(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open render output: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat render output: %w", err)
	}

	if err := p.store.Put(ctx, key, f, info.Size(), storage.VideoContentType); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	url, err := p.store.PresignGet(ctx, key, p.ttl)
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}

	p.logger.Info("render published",
		"key", key,
		"size", humanize.Bytes(uint64(info.Size())),
		"url", logging.SanitizeURL(url),
	)
	return url, nil
}
