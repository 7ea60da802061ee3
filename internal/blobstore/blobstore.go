// Package blobstore keeps the canonical media bytes for notes on the local
// filesystem, one file per note id.
//
// Writes are all-or-nothing: bytes are streamed into a temp file and renamed
// onto the final name only after a successful fsync, so a reader never sees a
// partially written blob under a note id.
package blobstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"chestnotes/internal/fileutil"
	"chestnotes/internal/logging"
	"chestnotes/internal/services"
)

// Store is the blob persistence contract used by ingestion and deletion.
type Store interface {
	Put(ctx context.Context, id string, r io.Reader) (int64, error)
	Open(ctx context.Context, id string) (*Blob, error)
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// Blob is an open committed blob. Callers must Close it.
type Blob struct {
	io.ReadSeekCloser
	Size    int64
	ModTime time.Time
}

// FS stores blobs as files named by the base64url encoding of the note id.
type FS struct {
	dir    string
	logger *slog.Logger
}

// NewFS creates the blob directory if needed.
func NewFS(dir string, logger *slog.Logger) (*FS, error) {
	if dir == "" {
		return nil, errors.New("blob directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &FS{dir: dir, logger: logging.NewComponentLogger(logger, "blobstore")}, nil
}

// Dir returns the directory holding committed blobs.
func (s *FS) Dir() string {
	return s.dir
}

func (s *FS) path(id string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(id)))
}

// Put streams r into the blob for id, replacing any existing blob atomically.
func (s *FS) Put(ctx context.Context, id string, r io.Reader) (int64, error) {
	if id == "" {
		return 0, services.Wrap(services.ErrBlobCommit, "blobstore", "put", "empty id", nil)
	}
	res, err := fileutil.WriteAtomic(s.path(id), &contextReader{ctx: ctx, r: r}, 0o644)
	if err != nil {
		return 0, services.Wrap(services.ErrBlobCommit, "blobstore", "put", id, err)
	}
	logging.WithContext(ctx, s.logger).Debug("blob committed",
		logging.NoteID(id),
		logging.Int64("bytes", res.Size),
		logging.String("sha256", res.SHA256),
	)
	return res.Size, nil
}

// Open returns the committed blob for id, or services.ErrNotFound.
func (s *FS) Open(_ context.Context, id string) (*Blob, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "blobstore", "open", id, nil)
		}
		return nil, services.Wrap(services.ErrStore, "blobstore", "open", id, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, services.Wrap(services.ErrStore, "blobstore", "stat", id, err)
	}
	return &Blob{ReadSeekCloser: f, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Exists reports whether a committed blob exists for id.
func (s *FS) Exists(_ context.Context, id string) (bool, error) {
	_, err := os.Stat(s.path(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, services.Wrap(services.ErrStore, "blobstore", "stat", id, err)
}

// Delete removes the blob for id. A missing blob is not an error.
func (s *FS) Delete(_ context.Context, id string) error {
	if err := fileutil.RemoveIfExists(s.path(id)); err != nil {
		return services.Wrap(services.ErrStore, "blobstore", "delete", id, err)
	}
	return nil
}

// SweepTemp removes temp files older than age left behind by interrupted writes.
func (s *FS) SweepTemp(_ context.Context, age time.Duration) (int, error) {
	return fileutil.SweepTemp(s.dir, fileutil.TempPrefix, time.Now().Add(-age))
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
