package events

import (
	"time"

	"chestnotes/internal/services"
)

// Outcome is the terminal result of a background upload.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// UploadEvent reports that a note's background processing finished.
type UploadEvent struct {
	Sequence uint64    `json:"seq"`
	ID       string    `json:"id"`
	Outcome  Outcome   `json:"outcome"`
	Note     string    `json:"note"`
	Kind     string    `json:"kind,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Name is the event name used on the SSE stream.
func (e UploadEvent) Name() string {
	if e.Outcome == OutcomeSuccess {
		return "uploadsuccess"
	}
	return "uploaderror"
}

// Success builds a success event for a finalized note.
func Success(id, name string) UploadEvent {
	return UploadEvent{ID: id, Outcome: OutcomeSuccess, Note: name}
}

// Failure builds an error event. The error kind is recorded alongside the
// message so clients can react without parsing text.
func Failure(id, name string, err error) UploadEvent {
	evt := UploadEvent{ID: id, Outcome: OutcomeError, Note: name, Kind: services.Kind(err)}
	if err != nil {
		evt.Error = err.Error()
	}
	return evt
}
