package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"

	"chestnotes/internal/blobstore"
	"chestnotes/internal/config"
	"chestnotes/internal/metadata"
	"chestnotes/internal/notes"
	"chestnotes/internal/recovery"
)

// ErrLocked reports that a running instance holds the daemon lock.
var ErrLocked = errors.New("another chest instance is running")

// Recover runs one recovery pass without serving traffic. It takes the
// same lock as Start so a live server's in-flight notes are never purged.
func Recover(ctx context.Context, cfg *config.Config, store metadata.Store, logger *slog.Logger) (recovery.Report, error) {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return recovery.Report{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return recovery.Report{}, ErrLocked
	}
	defer func() { _ = lock.Unlock() }()

	blobs, err := blobstore.NewFS(cfg.Paths.BlobDir, logger)
	if err != nil {
		return recovery.Report{}, err
	}
	svc := notes.NewService(store, blobs, logger)
	scanner := recovery.NewScanner(store, svc, blobs, cfg.Paths.StagingDir, recovery.WithLogger(logger))
	return scanner.Run(ctx)
}

// DeleteNote removes a note offline under the daemon lock. system allows
// deleting media notes whose blob is missing.
func DeleteNote(ctx context.Context, cfg *config.Config, store metadata.Store, logger *slog.Logger, id string, system bool) error {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	defer func() { _ = lock.Unlock() }()

	blobs, err := blobstore.NewFS(cfg.Paths.BlobDir, logger)
	if err != nil {
		return err
	}
	return notes.NewService(store, blobs, logger).Delete(ctx, id, notes.DeleteOptions{System: system})
}
