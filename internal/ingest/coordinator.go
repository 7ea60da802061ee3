package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"chestnotes/internal/blobstore"
	"chestnotes/internal/events"
	"chestnotes/internal/fileutil"
	"chestnotes/internal/logging"
	"chestnotes/internal/metadata"
	"chestnotes/internal/notes"
	"chestnotes/internal/services"
	"chestnotes/internal/transcode"
)

const cleanupTimeout = 15 * time.Second

// NoteInput is a client submission. Content is nil when the client sent no
// content field.
type NoteInput struct {
	ID      string
	Name    string
	Type    string
	Content *string
}

// Ack is returned once the note is durably recorded. Complete is false for
// media notes still being processed.
type Ack struct {
	ID       string
	Complete bool
}

// Publisher receives upload outcomes.
type Publisher interface {
	Publish(events.UploadEvent)
}

// Config wires the coordinator's collaborators.
type Config struct {
	Store      metadata.Store
	Blobs      blobstore.Store
	Transcoder transcode.Transcoder
	Publisher  Publisher
	StagingDir string
	Logger     *slog.Logger
}

// Coordinator orchestrates ingestion of individual notes.
type Coordinator struct {
	base       context.Context
	store      metadata.Store
	blobs      blobstore.Store
	transcoder transcode.Transcoder
	publisher  Publisher
	stagingDir string
	logger     *slog.Logger

	jobs    sync.WaitGroup
	pending atomic.Int64
}

// NewCoordinator validates cfg. Completion jobs inherit base and stop when it
// is cancelled.
func NewCoordinator(base context.Context, cfg Config) (*Coordinator, error) {
	switch {
	case base == nil:
		return nil, errors.New("ingest: base context is required")
	case cfg.Store == nil:
		return nil, errors.New("ingest: metadata store is required")
	case cfg.Blobs == nil:
		return nil, errors.New("ingest: blob store is required")
	case cfg.Transcoder == nil:
		return nil, errors.New("ingest: transcoder is required")
	case cfg.StagingDir == "":
		return nil, errors.New("ingest: staging directory is required")
	}
	if err := os.MkdirAll(cfg.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("ingest: create staging directory: %w", err)
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = discardPublisher{}
	}
	return &Coordinator{
		base:       base,
		store:      cfg.Store,
		blobs:      cfg.Blobs,
		transcoder: cfg.Transcoder,
		publisher:  publisher,
		stagingDir: cfg.StagingDir,
		logger:     logging.NewComponentLogger(cfg.Logger, "ingest"),
	}, nil
}

// Ingest records a note. For media it returns as soon as the provisional
// record is written; transcoding continues in the background.
func (c *Coordinator) Ingest(ctx context.Context, in NoteInput, media io.Reader) (Ack, error) {
	if err := metadata.ValidateID(in.ID); err != nil {
		return Ack{}, services.Wrap(services.ErrInvalidInput, "ingest", "validate", "", err)
	}
	kind, ok := metadata.ParseType(in.Type)
	if !ok {
		return Ack{}, services.Wrap(services.ErrInvalidInput, "ingest", "validate", fmt.Sprintf("unknown note type %q", in.Type), nil)
	}
	name := notes.NormalizeName(in.Name, in.ID)
	ctx = services.WithNoteID(ctx, in.ID)

	if media == nil {
		if kind != metadata.TypeText {
			return Ack{}, services.Wrap(services.ErrInvalidInput, "ingest", "validate", fmt.Sprintf("%s notes need a media upload", kind), nil)
		}
		if in.Content == nil {
			return Ack{}, services.Wrap(services.ErrInvalidInput, "ingest", "validate", "text notes need content", nil)
		}
		return c.ingestText(ctx, in.ID, name, *in.Content)
	}
	if !kind.IsMedia() {
		return Ack{}, services.Wrap(services.ErrInvalidInput, "ingest", "validate", "text notes cannot carry a media upload", nil)
	}
	return c.ingestMedia(ctx, in.ID, name, kind, media)
}

func (c *Coordinator) ingestText(ctx context.Context, id, name, content string) (Ack, error) {
	if err := c.store.Insert(ctx, metadata.NewTextNote(id, name, content)); err != nil {
		return Ack{}, err
	}
	logging.WithContext(ctx, c.logger).Info("text note added", logging.Int("bytes", len(content)))
	return Ack{ID: id, Complete: true}, nil
}

func (c *Coordinator) ingestMedia(ctx context.Context, id, name string, kind metadata.NoteType, media io.Reader) (Ack, error) {
	logger := logging.WithContext(ctx, c.logger)
	if err := c.base.Err(); err != nil {
		return Ack{}, services.Wrap(services.ErrStore, "ingest", "schedule", "server is shutting down", err)
	}

	spool, size, err := c.spool(id, media)
	if err != nil {
		return Ack{}, err
	}

	note := metadata.NewProvisionalNote(id, name, kind)
	if err := c.store.Insert(ctx, note); err != nil {
		c.removeArtifact(logger, spool)
		return Ack{}, err
	}

	c.jobs.Add(1)
	c.pending.Add(1)
	jobCtx := services.WithNoteID(c.base, id)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		jobCtx = services.WithRequestID(jobCtx, rid)
	}
	go c.complete(jobCtx, note, spool)

	logger.Info("media note accepted",
		logging.String("type", string(kind)),
		logging.Int64("bytes", size),
	)
	return Ack{ID: id, Complete: false}, nil
}

// spool copies the upload into the staging directory so it outlives the request.
func (c *Coordinator) spool(id string, media io.Reader) (string, int64, error) {
	path := c.artifactPath(id, ".upload")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, services.Wrap(services.ErrStore, "ingest", "spool", "create staging file", err)
	}
	written, copyErr := io.Copy(f, media)
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return "", 0, services.Wrap(services.ErrInvalidInput, "ingest", "spool", "read upload", copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return "", 0, services.Wrap(services.ErrStore, "ingest", "spool", "close staging file", closeErr)
	case written == 0:
		_ = os.Remove(path)
		return "", 0, services.Wrap(services.ErrInvalidInput, "ingest", "spool", "media upload is empty", nil)
	}
	return path, written, nil
}

func (c *Coordinator) artifactPath(id, suffix string) string {
	name := fileutil.TempPrefix + base64.RawURLEncoding.EncodeToString([]byte(id)) + "-" + uuid.NewString() + suffix
	return filepath.Join(c.stagingDir, name)
}

// complete runs the detached phase: transcode, commit blob, finalize, publish.
func (c *Coordinator) complete(ctx context.Context, note *metadata.Note, spool string) {
	logger := logging.WithContext(ctx, c.logger)
	output := c.artifactPath(note.ID, transcode.Extension)
	started := time.Now()

	defer func() {
		c.pending.Add(-1)
		c.jobs.Done()
	}()
	defer func() {
		c.removeArtifact(logger, spool)
		c.removeArtifact(logger, output)
	}()
	defer func() {
		if r := recover(); r != nil {
			c.fail(ctx, logger, note, services.Wrap(services.ErrTranscode, "ingest", "complete", fmt.Sprintf("panic: %v", r), nil), true)
		}
	}()

	job := transcode.Job{NoteID: note.ID, Kind: note.Type, InputPath: spool, OutputPath: output}
	if err := c.transcoder.Transcode(ctx, job); err != nil {
		c.fail(ctx, logger, note, err, false)
		return
	}

	if err := c.commitBlob(ctx, note.ID, output); err != nil {
		c.fail(ctx, logger, note, err, true)
		return
	}

	ok, err := c.store.MarkComplete(ctx, note.ID)
	if err != nil {
		c.fail(ctx, logger, note, err, true)
		return
	}
	if !ok {
		c.fail(ctx, logger, note, services.Wrap(services.ErrNotFound, "ingest", "finalize", "note was deleted while processing", nil), true)
		return
	}

	logger.Info("media note ready",
		logging.String("type", string(note.Type)),
		logging.Duration("elapsed", time.Since(started)),
	)
	c.publisher.Publish(events.Success(note.ID, note.Name))
}

func (c *Coordinator) commitBlob(ctx context.Context, id, output string) error {
	f, err := os.Open(output)
	if err != nil {
		return services.Wrap(services.ErrBlobCommit, "ingest", "commit", "open transcoded output", err)
	}
	defer f.Close()
	if _, err := c.blobs.Put(ctx, id, f); err != nil {
		if errors.Is(err, services.ErrBlobCommit) {
			return err
		}
		return services.Wrap(services.ErrBlobCommit, "ingest", "commit", id, err)
	}
	return nil
}

// fail rolls back a note after its acknowledgement and publishes the error.
// Rollback runs on a detached context so shutdown does not strand the record
// when the store is still reachable.
func (c *Coordinator) fail(ctx context.Context, logger *slog.Logger, note *metadata.Note, cause error, removeBlob bool) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if removeBlob {
		if err := c.blobs.Delete(cleanupCtx, note.ID); err != nil {
			logging.WarnWithContext(logger, "blob rollback failed", "blob_rollback_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "orphaned blob remains on disk"),
				logging.String(logging.FieldErrorHint, "check blob directory permissions"),
			)
		}
	}
	if _, err := c.store.Delete(cleanupCtx, note.ID); err != nil {
		logging.WarnWithContext(logger, "provisional record rollback failed", "record_rollback_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "note stays listed as incomplete until the next recovery"),
			logging.String(logging.FieldErrorHint, "check metadata store availability"),
		)
	}

	logging.ErrorWithContext(logger, "media ingestion failed", "ingest_failed",
		logging.Error(cause),
		logging.ErrorKind(cause),
		logging.String("type", string(note.Type)),
		logging.String(logging.FieldErrorHint, hintFor(cause)),
	)
	c.publisher.Publish(events.Failure(note.ID, note.Name, cause))
}

func (c *Coordinator) removeArtifact(logger *slog.Logger, path string) {
	if err := fileutil.RemoveIfExists(path); err != nil {
		logging.WarnWithContext(logger, "temporary file cleanup failed", "staging_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "staging directory keeps a stale file until recovery"),
			logging.String(logging.FieldErrorHint, "check staging directory permissions"),
		)
	}
}

// Wait blocks until every scheduled completion job has finished or ctx ends.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports the number of in-flight completion jobs.
func (c *Coordinator) Pending() int {
	return int(c.pending.Load())
}

func hintFor(err error) string {
	switch services.Kind(err) {
	case "transcode":
		return "the upload could not be converted; check the file and the ffmpeg installation"
	case "blob_commit":
		return "check free space and permissions of the blob directory"
	case "not_found":
		return "the note was deleted before processing finished"
	default:
		return "check metadata store availability"
	}
}

type discardPublisher struct{}

func (discardPublisher) Publish(events.UploadEvent) {}
