package blobstore_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chestnotes/internal/blobstore"
	"chestnotes/internal/logging"
	"chestnotes/internal/services"
)

func newStore(t *testing.T) *blobstore.FS {
	t.Helper()
	store, err := blobstore.NewFS(t.TempDir(), logging.NewNop())
	require.NoError(t, err)
	return store
}

type brokenReader struct{}

func (brokenReader) Read(p []byte) (int, error) {
	n := copy(p, "half")
	return n, errors.New("disk vanished")
}

func TestPutAndOpen(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	payload := bytes.Repeat([]byte{0xAB}, 1000)

	n, err := store.Put(ctx, "note/1 with spaces", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)

	blob, err := store.Open(ctx, "note/1 with spaces")
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, int64(1000), blob.Size)

	got, err := io.ReadAll(blob)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	exists, err := store.Exists(ctx, "note/1 with spaces")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPutFailureLeavesNoBlob(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "broken", brokenReader{})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrBlobCommit)

	exists, err := store.Exists(ctx, "broken")
	require.NoError(t, err)
	assert.False(t, exists)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files must be cleaned up")
}

func TestPutHonoursCancellation(t *testing.T) {
	store := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, "cancelled", strings.NewReader("data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	exists, _ := store.Exists(context.Background(), "cancelled")
	assert.False(t, exists)
}

func TestOpenMissing(t *testing.T) {
	store := newStore(t)
	_, err := store.Open(context.Background(), "ghost")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	_, err := store.Put(ctx, "gone", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "gone"))
	require.NoError(t, store.Delete(ctx, "gone"))
	require.NoError(t, store.Delete(ctx, "never-existed"))

	exists, err := store.Exists(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSweepTempKeepsCommittedBlobs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	_, err := store.Put(ctx, "kept", strings.NewReader("x"))
	require.NoError(t, err)

	stale, err := os.CreateTemp(store.Dir(), ".tmp-stale-*")
	require.NoError(t, err)
	require.NoError(t, stale.Close())
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale.Name(), past, past))

	removed, err := store.SweepTemp(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	exists, err := store.Exists(ctx, "kept")
	require.NoError(t, err)
	assert.True(t, exists)
}
