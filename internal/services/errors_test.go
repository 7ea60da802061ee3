package services_test

import (
	"errors"
	"strings"
	"testing"

	"chestnotes/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTranscode, "transcode", "ffmpeg", "exit status 1", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTranscode) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcode", "ffmpeg", "exit status 1"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrInvalidInput, "ingest", "validate", "bad type", nil), "invalid_input"},
		{services.Duplicate("metadata", "n1", errors.New("UNIQUE constraint failed")), "duplicate"},
		{services.Wrap(services.ErrStore, "metadata", "insert", "", errors.New("disk full")), "store"},
		{services.Wrap(services.ErrMissingBlob, "notes", "delete", "", nil), "missing_blob"},
		{services.Wrap(services.ErrDelete, "notes", "delete", "removed 0", nil), "delete"},
		{errors.New("plain"), "internal"},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestDuplicateCarriesStoreMarker(t *testing.T) {
	err := services.Duplicate("metadata", "n1", nil)
	if !errors.Is(err, services.ErrStore) || !errors.Is(err, services.ErrDuplicate) {
		t.Fatalf("expected store and duplicate markers, got %v", err)
	}
}
