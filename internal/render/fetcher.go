package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/clipreel/clipreel/internal/storage"
)

// ClipFetcher copies stored clips into the workspace.
type ClipFetcher struct {
	store  storage.ObjectStore
	logger *slog.Logger
}

func NewClipFetcher(store storage.ObjectStore, logger *slog.Logger) *ClipFetcher {
	return &ClipFetcher{store: store, logger: logger}
}

// Fetch writes the object at key to dest. A partially written file is
// removed on failure.
func (f *ClipFetcher) Fetch(ctx context.Context, key, dest string) (err error) {
	rc, err := f.store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", dest, cerr)
		}
		if err != nil {
			os.Remove(dest)
		}
	}()

	n, err := io.Copy(out, rc)
	if err != nil {
		return fmt.Errorf("copy %s: %w", key, err)
	}

	f.logger.Debug("clip fetched", "key", key, "size", humanize.Bytes(uint64(n)))
	return nil
}
