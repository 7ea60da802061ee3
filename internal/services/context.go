package services

import "context"

type contextKey string

const (
	noteIDKey    contextKey = "note_id"
	requestIDKey contextKey = "request_id"
	systemKey    contextKey = "system"
)

// WithNoteID annotates context with the note identifier being processed.
func WithNoteID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, noteIDKey, id)
}

// NoteIDFromContext extracts the note identifier if present.
func NoteIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(noteIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSystem marks the context as belonging to an operator or recovery task.
func WithSystem(ctx context.Context) context.Context {
	return context.WithValue(ctx, systemKey, true)
}

// IsSystem reports whether the context was marked by WithSystem.
func IsSystem(ctx context.Context) bool {
	v, _ := ctx.Value(systemKey).(bool)
	return v
}
