package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"chestnotes/internal/blobstore"
	"chestnotes/internal/config"
	"chestnotes/internal/deps"
	"chestnotes/internal/events"
	"chestnotes/internal/httpapi"
	"chestnotes/internal/ingest"
	"chestnotes/internal/logging"
	"chestnotes/internal/metadata"
	"chestnotes/internal/notes"
	"chestnotes/internal/notifications"
	"chestnotes/internal/preflight"
	"chestnotes/internal/recovery"
	"chestnotes/internal/transcode"
)

// Daemon owns the long-lived services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    metadata.Store
	blobs    *blobstore.FS
	bus      *events.Bus
	pool     *transcode.Pool
	notes    *notes.Service
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	coord   *ingest.Coordinator
	api     *apiServer
	wg      sync.WaitGroup

	mu           sync.Mutex
	lastRecovery *recovery.Report
	dependencies []deps.Status
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	Address      string           `json:"address,omitempty"`
	LockFilePath string           `json:"lock_file"`
	DatabaseURL  string           `json:"database_url"`
	Pending      int              `json:"pending"`
	Subscribers  int              `json:"subscribers"`
	Notes        metadata.Stats   `json:"notes"`
	LastRecovery *recovery.Report `json:"last_recovery,omitempty"`
	Dependencies []deps.Status    `json:"dependencies,omitempty"`
	Transcode    TranscodeStatus  `json:"transcode"`
}

// TranscodeStatus reports worker pool saturation.
type TranscodeStatus struct {
	Active  int `json:"active"`
	Waiting int `json:"waiting"`
	Size    int `json:"size"`
}

// Option customizes daemon construction.
type Option func(*options)

type options struct {
	transcoder transcode.Transcoder
	notifier   notifications.Service
}

// WithTranscoder replaces the ffmpeg transcoder. The pool still bounds it.
func WithTranscoder(t transcode.Transcoder) Option {
	return func(o *options) {
		o.transcoder = t
	}
}

// WithNotifier replaces the ntfy notifier built from config.
func WithNotifier(n notifications.Service) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store metadata.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	blobs, err := blobstore.NewFS(cfg.Paths.BlobDir, logger)
	if err != nil {
		return nil, err
	}

	transcoder := o.transcoder
	if transcoder == nil {
		transcoder = transcode.NewFFmpeg(
			transcode.WithBinary(cfg.Transcode.FFmpegBinary),
			transcode.WithVideoPreset(cfg.Transcode.VideoPreset),
			transcode.WithCRF(cfg.Transcode.VideoCRF),
			transcode.WithAudioBitrate(cfg.Transcode.AudioBitrate),
			transcode.WithTimeout(cfg.TranscodeTimeout()),
			transcode.WithLogger(logger),
		)
	}
	notifier := o.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		blobs:    blobs,
		bus:      events.NewBus(cfg.Server.SubscriberBuffer, logger),
		pool:     transcode.NewPool(transcoder, cfg.Transcode.MaxConcurrent, logger),
		notes:    notes.NewService(store, blobs, logger),
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, purges notes left incomplete by a
// previous process and only then opens the HTTP listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}

	d.runPreflight(ctx)

	if err := d.recover(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	coord, err := ingest.NewCoordinator(d.ctx, ingest.Config{
		Store:      d.store,
		Blobs:      d.blobs,
		Transcoder: d.pool,
		Publisher:  d.bus,
		StagingDir: d.cfg.Paths.StagingDir,
		Logger:     d.logger,
	})
	if err != nil {
		d.abortStart()
		return fmt.Errorf("start ingestion: %w", err)
	}
	d.coord = coord

	handler := httpapi.New(d.cfg, httpapi.Deps{
		Ingest: coord,
		Notes:  d.notes,
		Events: d.bus,
		Pool:   d.pool,
		Logger: d.logger,
	}).Handler()
	d.api = newAPIServer(d.cfg.Server.Bind, handler, d.logger)
	d.api.onShutdown(d.bus.Close)
	if err := d.api.start(); err != nil {
		d.abortStart()
		return err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		events.Forward(d.ctx, d.bus, d.notifier, d.logger)
	}()

	d.running.Store(true)
	d.logger.Info("chest daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
		logging.String("database", metadata.Redact(d.cfg.DatabaseURL())),
		logging.Int("workers", d.pool.Size()),
	)
	return nil
}

func (d *Daemon) abortStart() {
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx, d.cancel, d.coord, d.api = nil, nil, nil, nil
	_ = d.lock.Unlock()
}

func (d *Daemon) runPreflight(ctx context.Context) {
	results := preflight.RunAll(ctx, d.cfg)
	d.mu.Lock()
	d.dependencies = preflight.CheckSystemDeps(ctx, d.cfg)
	d.mu.Unlock()
	for _, r := range results {
		if r.Passed {
			d.logger.Debug("preflight check passed", logging.String("check", r.Name), logging.String("detail", r.Detail))
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.Bool("optional", r.Optional),
			logging.String(logging.FieldImpact, "uploads depending on this check will fail"),
			logging.String(logging.FieldErrorHint, "fix the reported path or binary and restart"),
		)
	}
}

func (d *Daemon) recover(ctx context.Context) error {
	scanner := recovery.NewScanner(d.store, d.notes, d.blobs, d.cfg.Paths.StagingDir, recovery.WithLogger(d.logger))
	report, err := scanner.Run(ctx)
	d.mu.Lock()
	d.lastRecovery = &report
	d.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("startup recovery: %w", err)
		}
		logging.WarnWithContext(d.logger, "startup recovery incomplete", "recovery_incomplete",
			logging.Error(err),
			logging.Int("failed", len(report.Failed)),
			logging.String(logging.FieldImpact, "some interrupted uploads remain listed as incomplete"),
			logging.String(logging.FieldErrorHint, "run chest recover after resolving the store error"),
		)
	}
	if len(report.Purged) > 0 || len(report.Failed) > 0 {
		if notifyErr := d.notifier.NotifyRecovery(ctx, len(report.Purged), len(report.Failed)); notifyErr != nil {
			d.logger.Debug("recovery notification failed", logging.Error(notifyErr))
		}
	}
	d.logger.Info("startup recovery finished",
		logging.Int("scanned", report.Scanned),
		logging.Int("purged", len(report.Purged)),
		logging.Int("staging_swept", report.StagingSwept),
		logging.Int("blob_tmp_swept", report.BlobTmpSwept),
		logging.Duration("elapsed", report.Elapsed),
	)
	return nil
}

// Stop closes the listener, cancels in-flight completion jobs and waits for
// them to roll back, then releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	timeout := d.cfg.ShutdownTimeout()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	if err := d.api.stop(shutdownCtx); err != nil {
		d.logger.Warn("http shutdown incomplete", logging.Error(err))
	}
	cancel()

	if d.cancel != nil {
		d.cancel()
	}

	waitCtx, cancelWait := context.WithTimeout(context.Background(), timeout)
	if err := d.coord.Wait(waitCtx); err != nil {
		logging.WarnWithContext(d.logger, "completion jobs still running at shutdown", "shutdown_timeout",
			logging.Int("pending", d.coord.Pending()),
			logging.String(logging.FieldImpact, "unfinished notes are purged on next start"),
			logging.String(logging.FieldErrorHint, "raise server.shutdown_timeout_seconds"),
		)
	}
	cancelWait()

	d.bus.Close()
	d.wg.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx, d.cancel = nil, nil
	d.running.Store(false)
	d.logger.Info("chest daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the bound listener address while running.
func (d *Daemon) Addr() string {
	if !d.running.Load() || d.api == nil {
		return ""
	}
	return d.api.addr()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Address:      d.Addr(),
		LockFilePath: d.lockPath,
		DatabaseURL:  metadata.Redact(d.cfg.DatabaseURL()),
		Subscribers:  d.bus.Subscribers(),
		Transcode: TranscodeStatus{
			Active:  d.pool.Active(),
			Waiting: d.pool.Waiting(),
			Size:    d.pool.Size(),
		},
	}
	if status.Running && d.coord != nil {
		status.Pending = d.coord.Pending()
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.Notes = stats
	} else {
		d.logger.Debug("status stats unavailable", logging.Error(err))
	}
	d.mu.Lock()
	status.LastRecovery = d.lastRecovery
	status.Dependencies = append([]deps.Status(nil), d.dependencies...)
	d.mu.Unlock()
	return status
}
