package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"chestnotes/internal/logging"
	"chestnotes/internal/logs"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chest.log")
	writeLog(t, path, "a\nb\nc\n")

	lines, offset, err := logs.Tail(path, 2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}
}

func TestTailShortFileAndMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chest.log")
	writeLog(t, path, "only\n")

	lines, _, err := logs.Tail(path, 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 1 || lines[0] != "only" {
		t.Fatalf("unexpected lines: %#v", lines)
	}

	lines, offset, err := logs.Tail(filepath.Join(dir, "absent.log"), 10)
	if err != nil || len(lines) != 0 || offset != 0 {
		t.Fatalf("expected empty result for missing file, got %#v %d %v", lines, offset, err)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chest.log")
	writeLog(t, path, "old\n")
	_, offset, err := logs.Tail(path, 0)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}

	var (
		mu  sync.Mutex
		got []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 10*time.Millisecond, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	_, _ = f.WriteString("new-1\nnew-2\npartial")
	_ = f.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "new-1" || got[1] != "new-2" {
		t.Fatalf("unexpected followed lines: %#v", got)
	}
}

func TestFollowRestartsAfterTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chest.log")
	writeLog(t, path, "fresh\n")

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan string, 4)
	go func() {
		_ = logs.Follow(ctx, path, 1024, 10*time.Millisecond, func(line string) { got <- line })
	}()
	defer cancel()

	select {
	case line := <-got:
		if line != "fresh" {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected truncated file to be re-read")
	}
}

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		name   string
		filter logs.Filter
		line   string
		want   bool
	}{
		{"empty filter", logs.Filter{}, "anything", true},
		{"console with component", logs.Filter{NoteID: "n-1"}, "2026-01-02 10:00:00 INFO ingest [n-1]: note completed", true},
		{"console without component", logs.Filter{NoteID: "n-1"}, "2026-01-02 10:00:00 INFO [n-1] note completed", true},
		{"console other note", logs.Filter{NoteID: "n-1"}, "2026-01-02 10:00:00 INFO ingest [n-2]: note completed", false},
		{"console no note", logs.Filter{NoteID: "n-1"}, "2026-01-02 10:00:00 INFO daemon: started [n-1]", false},
		{"json note", logs.Filter{NoteID: "n-1"}, `{"time":"t","level":"INFO","msg":"done","note_id":"n-1"}`, true},
		{"json other note", logs.Filter{NoteID: "n-1"}, `{"time":"t","level":"INFO","msg":"done","note_id":"n-10"}`, false},
		{"level passes", logs.Filter{MinLevel: "warn"}, "2026-01-02 10:00:00 ERROR ingest: failed", true},
		{"level blocks", logs.Filter{MinLevel: "warn"}, "2026-01-02 10:00:00 INFO ingest: ok", false},
		{"json level", logs.Filter{MinLevel: "warn"}, `{"level":"WARN","msg":"slow"}`, true},
		{"unknown level blocked", logs.Filter{MinLevel: "error"}, "not a log line", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.line); got != tt.want {
				t.Fatalf("Match(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestFilterMatchesHandlerOutput(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "chest.log")
			logger, err := logging.New(logging.Options{
				Level:            "info",
				Format:           format,
				OutputPaths:      []string{path},
				ErrorOutputPaths: []string{path},
			})
			if err != nil {
				t.Fatalf("logging.New: %v", err)
			}
			ingest := logging.NewComponentLogger(logger, "ingest")
			ingest.Info("staged upload", logging.NoteID("clip-1"))
			ingest.Warn("transcode failed", logging.NoteID("clip-2"))
			logger.Info("server started")

			lines, _, err := logs.Tail(path, 10)
			if err != nil {
				t.Fatalf("Tail: %v", err)
			}
			if len(lines) != 3 {
				t.Fatalf("expected 3 lines, got %#v", lines)
			}

			var matched []string
			filter := logs.Filter{NoteID: "clip-1"}
			for _, line := range lines {
				if filter.Match(line) {
					matched = append(matched, line)
				}
			}
			if len(matched) != 1 || !strings.Contains(matched[0], "staged upload") {
				t.Fatalf("note filter matched %#v", matched)
			}

			warn := logs.Filter{MinLevel: "warn"}
			if !warn.Match(lines[1]) || warn.Match(lines[0]) || warn.Match(lines[2]) {
				t.Fatalf("level filter mismatch on %#v", lines)
			}
		})
	}
}
