package notes

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"chestnotes/internal/blobstore"
	"chestnotes/internal/logging"
	"chestnotes/internal/metadata"
	"chestnotes/internal/services"
)

// MediaPlaceholder replaces media content in listings.
const MediaPlaceholder = "media"

// View is a note as rendered to clients.
type View struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Type           metadata.NoteType `json:"type"`
	Content        string            `json:"content"`
	UploadComplete *bool             `json:"uploadComplete,omitempty"`
	CreatedAt      string            `json:"createdAt,omitempty"`
}

// DeleteOptions controls deletion policy.
type DeleteOptions struct {
	// System marks maintenance deletes (recovery, operator tasks) that may
	// proceed without a committed blob.
	System bool
}

// Service wires the metadata and blob stores for reads and deletes.
type Service struct {
	store  metadata.Store
	blobs  blobstore.Store
	logger *slog.Logger
}

// NewService constructs a notes service.
func NewService(store metadata.Store, blobs blobstore.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		blobs:  blobs,
		logger: logging.NewComponentLogger(logger, "notes"),
	}
}

// List returns every note in creation order with media content replaced by
// MediaPlaceholder.
func (s *Service) List(ctx context.Context) ([]View, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(records))
	for _, note := range records {
		views = append(views, Render(note))
	}
	return views, nil
}

// Get returns the record for id or services.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*metadata.Note, error) {
	note, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, services.Wrap(services.ErrNotFound, "notes", "get", id, nil)
	}
	return note, nil
}

// Open returns the committed blob of a complete media note. Text notes,
// incomplete notes and unknown ids are all services.ErrNotFound.
func (s *Service) Open(ctx context.Context, id string) (*metadata.Note, *blobstore.Blob, error) {
	note, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !note.Type.IsMedia() {
		return nil, nil, services.Wrap(services.ErrNotFound, "notes", "open", "text notes have no media", nil)
	}
	if !note.Complete() {
		return nil, nil, services.Wrap(services.ErrNotFound, "notes", "open", "upload still processing", nil)
	}
	blob, err := s.blobs.Open(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return note, blob, nil
}

// Delete removes the note and, for media notes, its blob.
func (s *Service) Delete(ctx context.Context, id string, opts DeleteOptions) error {
	ctx = services.WithNoteID(ctx, id)
	logger := logging.WithContext(ctx, s.logger)

	note, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if note == nil {
		return services.Wrap(services.ErrNotFound, "notes", "delete", id, nil)
	}

	if note.Type.IsMedia() {
		exists, err := s.blobs.Exists(ctx, id)
		if err != nil {
			return services.Wrap(services.ErrDelete, "notes", "delete", "check blob", err)
		}
		switch {
		case exists:
			if err := s.blobs.Delete(ctx, id); err != nil {
				return services.Wrap(services.ErrDelete, "notes", "delete", "remove blob", err)
			}
		case !opts.System:
			return services.Wrap(services.ErrMissingBlob, "notes", "delete", "media is not committed yet", nil)
		default:
			logger.Debug("system delete without blob")
		}
	}

	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return services.Wrap(services.ErrDelete, "notes", "delete", "remove record", err)
	}
	if removed != 1 {
		return services.Wrap(services.ErrDelete, "notes", "delete", "record vanished during delete", nil)
	}
	logger.Info("note deleted",
		logging.String("type", string(note.Type)),
		logging.Bool("system", opts.System),
	)
	return nil
}

// Stats returns store counts.
func (s *Service) Stats(ctx context.Context) (metadata.Stats, error) {
	return s.store.Stats(ctx)
}

// Render converts a record to its client view.
func Render(note *metadata.Note) View {
	view := View{
		ID:             note.ID,
		Name:           note.Name,
		Type:           note.Type,
		Content:        note.Content,
		UploadComplete: note.UploadComplete,
	}
	if note.Type.IsMedia() {
		view.Content = MediaPlaceholder
	}
	if !note.CreatedAt.IsZero() {
		view.CreatedAt = note.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	return view
}

// NormalizeName trims a display name and converts it to Unicode NFC. An empty
// result falls back to the note id.
func NormalizeName(name, id string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return id
	}
	return name
}
