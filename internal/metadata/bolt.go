package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"chestnotes/internal/services"
)

var bucketNotes = []byte("notes")

// boltRecord is the stored form; Seq preserves creation order.
type boltRecord struct {
	Seq uint64 `json:"seq"`
	Note
}

// Bolt stores notes as JSON documents in a bbolt bucket keyed by id.
type Bolt struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the database file at path.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNotes)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

var errBoltDuplicate = errors.New("key exists")

func (b *Bolt) Insert(_ context.Context, note *Note) error {
	now := time.Now().UTC()
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketNotes)
		if bucket.Get([]byte(note.ID)) != nil {
			return errBoltDuplicate
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		record := boltRecord{Seq: seq, Note: *note}
		record.CreatedAt, record.UpdatedAt = now, now
		if record.Type != TypeText {
			record.Content = ""
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(note.ID), data)
	})
	if errors.Is(err, errBoltDuplicate) {
		return services.Duplicate("metadata", note.ID, nil)
	}
	if err != nil {
		return services.Wrap(services.ErrStore, "metadata", "insert", note.ID, err)
	}
	note.CreatedAt, note.UpdatedAt = now, now
	return nil
}

func (b *Bolt) Get(_ context.Context, id string) (*Note, error) {
	var note *Note
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketNotes).Get([]byte(id))
		if data == nil {
			return nil
		}
		var record boltRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}
		note = &record.Note
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "metadata", "get", id, err)
	}
	return note, nil
}

func (b *Bolt) List(_ context.Context) ([]*Note, error) {
	return b.scan("list", func(*Note) bool { return true })
}

func (b *Bolt) ListIncomplete(_ context.Context) ([]*Note, error) {
	return b.scan("list incomplete", func(n *Note) bool { return n.UploadComplete != nil && !*n.UploadComplete })
}

func (b *Bolt) scan(operation string, keep func(*Note) bool) ([]*Note, error) {
	var records []boltRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNotes).ForEach(func(_, data []byte) error {
			var record boltRecord
			if err := json.Unmarshal(data, &record); err != nil {
				return err
			}
			if keep(&record.Note) {
				records = append(records, record)
			}
			return nil
		})
	})
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "metadata", operation, "", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	notes := make([]*Note, 0, len(records))
	for i := range records {
		notes = append(notes, &records[i].Note)
	}
	return notes, nil
}

func (b *Bolt) MarkComplete(_ context.Context, id string) (bool, error) {
	var flipped bool
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketNotes)
		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}
		var record boltRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}
		if record.UploadComplete == nil || *record.UploadComplete {
			return nil
		}
		record.UploadComplete = boolPtr(true)
		record.UpdatedAt = time.Now().UTC()
		updated, err := json.Marshal(record)
		if err != nil {
			return err
		}
		flipped = true
		return bucket.Put([]byte(id), updated)
	})
	if err != nil {
		return false, services.Wrap(services.ErrStore, "metadata", "mark complete", id, err)
	}
	return flipped, nil
}

func (b *Bolt) Delete(_ context.Context, id string) (int64, error) {
	var removed int64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketNotes)
		if bucket.Get([]byte(id)) == nil {
			return nil
		}
		removed = 1
		return bucket.Delete([]byte(id))
	})
	if err != nil {
		return 0, services.Wrap(services.ErrStore, "metadata", "delete", id, err)
	}
	return removed, nil
}

func (b *Bolt) Stats(ctx context.Context) (Stats, error) {
	notes, err := b.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return computeStats(notes), nil
}

func (b *Bolt) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
