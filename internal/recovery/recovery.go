// Package recovery purges notes whose background processing never finished.
//
// A media note still marked uploadComplete=false at startup belongs to a job
// that died with the previous process, so Scanner deletes it through the
// system delete path and sweeps stale staging and blob temp files. Callers
// must hold the daemon's single-instance lock; otherwise a live process's
// in-flight notes would be purged.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chestnotes/internal/fileutil"
	"chestnotes/internal/logging"
	"chestnotes/internal/metadata"
	"chestnotes/internal/notes"
)

// Deleter removes a note.
type Deleter interface {
	Delete(ctx context.Context, id string, opts notes.DeleteOptions) error
}

// TempSweeper removes abandoned temp files older than age.
type TempSweeper interface {
	SweepTemp(ctx context.Context, age time.Duration) (int, error)
}

// Report summarizes one recovery pass.
type Report struct {
	Scanned      int           `json:"scanned"`
	Purged       []string      `json:"purged"`
	Failed       []string      `json:"failed,omitempty"`
	StagingSwept int           `json:"staging_swept"`
	BlobTmpSwept int           `json:"blob_tmp_swept"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Scanner performs startup recovery.
type Scanner struct {
	store      metadata.Store
	deleter    Deleter
	blobs      TempSweeper
	stagingDir string
	tempAge    time.Duration
	logger     *slog.Logger
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithTempAge only sweeps temp files older than age. The default of zero
// treats every temp file as abandoned, which holds while the instance lock
// is held.
func WithTempAge(age time.Duration) Option {
	return func(s *Scanner) {
		s.tempAge = age
	}
}

// WithLogger sets the scanner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner builds a scanner. blobs may be nil to skip the blob temp sweep.
func NewScanner(store metadata.Store, deleter Deleter, blobs TempSweeper, stagingDir string, opts ...Option) *Scanner {
	s := &Scanner{store: store, deleter: deleter, blobs: blobs, stagingDir: stagingDir}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "recovery")
	return s
}

// Run purges every incomplete note, continuing past individual failures, then
// sweeps temp files. The returned error joins all failures.
func (s *Scanner) Run(ctx context.Context) (Report, error) {
	started := time.Now()
	var report Report

	incomplete, err := s.store.ListIncomplete(ctx)
	if err != nil {
		return report, fmt.Errorf("list incomplete notes: %w", err)
	}
	report.Scanned = len(incomplete)

	var errs []error
	for _, note := range incomplete {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.deleter.Delete(ctx, note.ID, notes.DeleteOptions{System: true}); err != nil {
			report.Failed = append(report.Failed, note.ID)
			errs = append(errs, fmt.Errorf("purge %q: %w", note.ID, err))
			logging.WarnWithContext(s.logger, "incomplete note purge failed", "recovery_purge_failed",
				logging.NoteID(note.ID),
				logging.Error(err),
				logging.ErrorKind(err),
				logging.String(logging.FieldImpact, "note stays listed as incomplete"),
				logging.String(logging.FieldErrorHint, "rerun chest recover once the store is healthy"),
			)
			continue
		}
		report.Purged = append(report.Purged, note.ID)
		s.logger.Info("purged incomplete note",
			logging.NoteID(note.ID),
			logging.String("type", string(note.Type)),
		)
	}

	cutoff := time.Now().Add(-s.tempAge)
	if s.stagingDir != "" {
		swept, err := fileutil.SweepTemp(s.stagingDir, fileutil.TempPrefix, cutoff)
		report.StagingSwept = swept
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep staging: %w", err))
		}
	}
	if s.blobs != nil {
		swept, err := s.blobs.SweepTemp(ctx, s.tempAge)
		report.BlobTmpSwept = swept
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep blob temp files: %w", err))
		}
	}

	report.Elapsed = time.Since(started)
	s.logger.Info("recovery finished",
		logging.Int("scanned", report.Scanned),
		logging.Int("purged", len(report.Purged)),
		logging.Int("failed", len(report.Failed)),
		logging.Int("staging_swept", report.StagingSwept),
		logging.Int("blob_tmp_swept", report.BlobTmpSwept),
		logging.Duration("elapsed", report.Elapsed),
	)
	return report, errors.Join(errs...)
}
