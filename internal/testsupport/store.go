package testsupport

import (
	"bytes"
	"context"
	"testing"

	"chestnotes/internal/blobstore"
	"chestnotes/internal/config"
	"chestnotes/internal/metadata"
)

// MustOpenStore opens the configured metadata store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) metadata.Store {
	t.Helper()

	store, err := metadata.Open(context.Background(), cfg.DatabaseURL())
	if err != nil {
		t.Fatalf("metadata.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustOpenBlobs opens the configured blob directory.
func MustOpenBlobs(t testing.TB, cfg *config.Config) *blobstore.FS {
	t.Helper()

	blobs, err := blobstore.NewFS(cfg.Paths.BlobDir, nil)
	if err != nil {
		t.Fatalf("blobstore.NewFS: %v", err)
	}
	return blobs
}

// InsertText stores a finished text note.
func InsertText(t testing.TB, store metadata.Store, id, content string) *metadata.Note {
	t.Helper()

	note := metadata.NewTextNote(id, id, content)
	if err := store.Insert(context.Background(), note); err != nil {
		t.Fatalf("insert text note %s: %v", id, err)
	}
	return note
}

// InsertMedia stores a media note. When data is non-nil the blob is committed
// and the note is marked complete; otherwise it stays provisional.
func InsertMedia(t testing.TB, store metadata.Store, blobs blobstore.Store, id string, kind metadata.NoteType, data []byte) *metadata.Note {
	t.Helper()

	ctx := context.Background()
	note := metadata.NewProvisionalNote(id, id, kind)
	if err := store.Insert(ctx, note); err != nil {
		t.Fatalf("insert media note %s: %v", id, err)
	}
	if data == nil {
		return note
	}
	if _, err := blobs.Put(ctx, id, bytes.NewReader(data)); err != nil {
		t.Fatalf("put blob %s: %v", id, err)
	}
	ok, err := store.MarkComplete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("mark complete %s: ok=%v err=%v", id, ok, err)
	}
	complete := true
	note.UploadComplete = &complete
	return note
}
