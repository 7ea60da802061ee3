package metadata

import (
	"context"
	"sync"
	"time"

	"chestnotes/internal/services"
)

// Memory is a process-local Store for tests and throwaway runs.
type Memory struct {
	mu    sync.Mutex
	seq   uint64
	notes map[string]memoryRecord
}

type memoryRecord struct {
	seq  uint64
	note Note
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{notes: make(map[string]memoryRecord)}
}

func (m *Memory) Insert(_ context.Context, note *Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.notes[note.ID]; exists {
		return services.Duplicate("metadata", note.ID, nil)
	}
	now := time.Now().UTC()
	note.CreatedAt, note.UpdatedAt = now, now
	m.seq++
	m.notes[note.ID] = memoryRecord{seq: m.seq, note: cloneNote(note)}
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.notes[id]
	if !ok {
		return nil, nil
	}
	note := cloneNote(&record.note)
	return &note, nil
}

func (m *Memory) List(_ context.Context) ([]*Note, error) {
	return m.collect(func(*Note) bool { return true }), nil
}

func (m *Memory) ListIncomplete(_ context.Context) ([]*Note, error) {
	return m.collect(func(n *Note) bool { return n.UploadComplete != nil && !*n.UploadComplete }), nil
}

func (m *Memory) collect(keep func(*Note) bool) []*Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	ordered := make([]*Note, m.seq+1)
	for _, record := range m.notes {
		if keep(&record.note) {
			note := cloneNote(&record.note)
			ordered[record.seq] = &note
		}
	}
	notes := make([]*Note, 0, len(m.notes))
	for _, note := range ordered {
		if note != nil {
			notes = append(notes, note)
		}
	}
	return notes
}

func (m *Memory) MarkComplete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.notes[id]
	if !ok || record.note.UploadComplete == nil || *record.note.UploadComplete {
		return false, nil
	}
	record.note.UploadComplete = boolPtr(true)
	record.note.UpdatedAt = time.Now().UTC()
	m.notes[id] = record
	return true, nil
}

func (m *Memory) Delete(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[id]; !ok {
		return 0, nil
	}
	delete(m.notes, id)
	return 1, nil
}

func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	notes, _ := m.List(ctx)
	return computeStats(notes), nil
}

func (m *Memory) Close() error { return nil }

func cloneNote(note *Note) Note {
	clone := *note
	if note.UploadComplete != nil {
		clone.UploadComplete = boolPtr(*note.UploadComplete)
	}
	if clone.Type != TypeText {
		clone.Content = ""
	}
	return clone
}
