package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"chestnotes/internal/config"
	"chestnotes/internal/deps"
	"chestnotes/internal/metadata"
	"chestnotes/internal/notes"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Chest", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Chest:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Chest", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Available: false, Detail: "missing encoders: libx264"},
		{Name: "FFprobe", Available: true, Command: "/usr/bin/ffprobe", Version: "7.0.1"},
		{Name: "ntfy", Available: false, Optional: true},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[ERROR] missing encoders: libx264") {
		t.Fatalf("expected error detail first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] Ready (command: /usr/bin/ffprobe, version 7.0.1)") {
		t.Fatalf("expected ready detail, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[WARN] not available") {
		t.Fatalf("expected optional warning, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "FFmpeg, ntfy") {
		t.Fatalf("expected missing summary, got %q", lines[3])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestStatusURL(t *testing.T) {
	cases := []struct {
		bind string
		want string
	}{
		{"127.0.0.1:8080", "http://127.0.0.1:8080/chest-of-notes/status"},
		{"0.0.0.0:9000", "http://127.0.0.1:9000/chest-of-notes/status"},
		{":3001", "http://127.0.0.1:3001/chest-of-notes/status"},
		{"[::]:3001", "http://127.0.0.1:3001/chest-of-notes/status"},
		{"nonsense", ""},
	}
	for _, tc := range cases {
		cfg := config.Default()
		cfg.Server.Bind = tc.bind
		if got := statusURL(&cfg); got != tc.want {
			t.Errorf("statusURL(%q) = %q, want %q", tc.bind, got, tc.want)
		}
	}
}

func TestNotePreviewAndState(t *testing.T) {
	long := notes.View{Type: metadata.TypeText, Content: strings.Repeat("ä", 60)}
	got := preview(long)
	if n := len([]rune(got)); n != previewRunes {
		t.Fatalf("expected %d runes, got %d", previewRunes, n)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis, got %q", got)
	}
	if preview(notes.View{Type: metadata.TypeAudio, Content: notes.MediaPlaceholder}) != "" {
		t.Fatal("media notes have no preview")
	}

	done := true
	if noteState(notes.View{Type: metadata.TypeVideo, UploadComplete: &done}) != "ready" {
		t.Fatal("expected ready state")
	}
	if noteState(notes.View{Type: metadata.TypeVideo}) != "processing" {
		t.Fatal("expected processing state")
	}
}
