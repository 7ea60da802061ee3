package notes_test

import (
	"context"

	"chestnotes/internal/blobstore"
)

// testBlobs injects delete failures into a real blob store.
type testBlobs struct {
	*blobstore.FS
	failDelete error
}

func (b *testBlobs) Delete(ctx context.Context, id string) error {
	if b.failDelete != nil {
		return b.failDelete
	}
	return b.FS.Delete(ctx, id)
}
