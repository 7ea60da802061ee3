package services_test

import (
	"context"
	"testing"

	"chestnotes/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithNoteID(ctx, "note-1")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.NoteIDFromContext(ctx); !ok || id != "note-1" {
		t.Fatalf("unexpected note id: %v %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
	if services.IsSystem(ctx) {
		t.Fatal("expected user context")
	}
	if !services.IsSystem(services.WithSystem(ctx)) {
		t.Fatal("expected system context")
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithNoteID(ctx, "")
	if _, ok := services.NoteIDFromContext(ctx); ok {
		t.Fatal("expected no note id value")
	}
}
