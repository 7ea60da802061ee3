package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxIDBytes bounds caller-supplied note ids so encoded blob names fit in a
// single path element.
const MaxIDBytes = 128

// ValidateID checks a caller-supplied note id.
func ValidateID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return errors.New("id is required")
	case len(id) > MaxIDBytes:
		return fmt.Errorf("id exceeds %d bytes", MaxIDBytes)
	case !utf8.ValidString(id):
		return errors.New("id must be valid UTF-8")
	case strings.ContainsRune(id, 0):
		return errors.New("id must not contain NUL")
	}
	return nil
}

// NoteType distinguishes inline text notes from media notes.
type NoteType string

const (
	TypeText  NoteType = "text"
	TypeAudio NoteType = "audio"
	TypeVideo NoteType = "video"
)

// ParseType normalizes a client-supplied type string.
func ParseType(value string) (NoteType, bool) {
	switch NoteType(strings.ToLower(strings.TrimSpace(value))) {
	case TypeText:
		return TypeText, true
	case TypeAudio:
		return TypeAudio, true
	case TypeVideo:
		return TypeVideo, true
	default:
		return "", false
	}
}

// IsMedia reports whether notes of this type are backed by a blob.
func (t NoteType) IsMedia() bool {
	return t == TypeAudio || t == TypeVideo
}

// Note is a persisted note record.
type Note struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Type    NoteType `json:"type"`
	Content string   `json:"content,omitempty"`
	// UploadComplete is nil for text notes.
	UploadComplete *bool     `json:"uploadComplete,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Complete reports whether the note is fully ingested. Text notes are always complete.
func (n *Note) Complete() bool {
	if n == nil {
		return false
	}
	if n.UploadComplete == nil {
		return true
	}
	return *n.UploadComplete
}

// NewTextNote builds a final text record.
func NewTextNote(id, name, content string) *Note {
	return &Note{ID: id, Name: name, Type: TypeText, Content: content}
}

// NewProvisionalNote builds a media record with uploadComplete=false.
func NewProvisionalNote(id, name string, kind NoteType) *Note {
	complete := false
	return &Note{ID: id, Name: name, Type: kind, UploadComplete: &complete}
}

// Stats summarizes the store contents.
type Stats struct {
	Total      int `json:"total"`
	Text       int `json:"text"`
	Media      int `json:"media"`
	Incomplete int `json:"incomplete"`
}

// Store is the metadata persistence contract. Get returns (nil, nil) for an
// unknown id. Delete returns the number of records removed.
type Store interface {
	Insert(ctx context.Context, note *Note) error
	Get(ctx context.Context, id string) (*Note, error)
	List(ctx context.Context) ([]*Note, error)
	ListIncomplete(ctx context.Context) ([]*Note, error)
	MarkComplete(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) (int64, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

func boolPtr(v bool) *bool {
	return &v
}

func computeStats(notes []*Note) Stats {
	var stats Stats
	for _, note := range notes {
		stats.Total++
		if note.Type.IsMedia() {
			stats.Media++
			if !note.Complete() {
				stats.Incomplete++
			}
			continue
		}
		stats.Text++
	}
	return stats
}
