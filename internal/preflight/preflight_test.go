package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chestnotes/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckNtfy_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"healthy":true}`))
	}))
	defer srv.Close()

	result := CheckNtfy(context.Background(), srv.URL+"/chest-notes")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckNtfy_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	result := CheckNtfy(context.Background(), srv.URL+"/chest-notes")
	if result.Passed {
		t.Fatal("expected failure for unhealthy server")
	}
	if !strings.Contains(result.Detail, "503") {
		t.Fatalf("expected status in detail, got %q", result.Detail)
	}
}

func TestCheckNtfy_InvalidTopic(t *testing.T) {
	for _, topic := range []string{"", "not a url"} {
		if result := CheckNtfy(context.Background(), topic); result.Passed {
			t.Fatalf("expected failure for topic %q", topic)
		}
	}
}

func TestCheckDatabase(t *testing.T) {
	url := "sqlite://" + filepath.Join(t.TempDir(), "notes.db")
	result := CheckDatabase(context.Background(), url)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "0 notes") {
		t.Fatalf("expected note count in detail, got %q", result.Detail)
	}

	result = CheckDatabase(context.Background(), "mongodb://localhost/notes")
	if result.Passed {
		t.Fatal("expected failure for unsupported scheme")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsMissingFFmpeg(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.StagingDir = t.TempDir()
	cfg.Paths.BlobDir = t.TempDir()
	cfg.Transcode.FFmpegBinary = "clearly-not-present-ffmpeg"
	cfg.Notifications.NtfyTopic = ""

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "FFmpeg" {
		t.Fatalf("expected only FFmpeg to fail, got %#v", failed)
	}
}

func TestRunAll_NtfyIsOptional(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.StagingDir = t.TempDir()
	cfg.Paths.BlobDir = filepath.Join(t.TempDir(), "missing")
	cfg.Transcode.FFmpegBinary = "clearly-not-present-ffmpeg"
	cfg.Notifications.NtfyTopic = srv.URL + "/chest"

	results := RunAll(context.Background(), &cfg)
	var ntfy *Result
	for i := range results {
		if results[i].Name == "ntfy" {
			ntfy = &results[i]
		}
	}
	if ntfy == nil {
		t.Fatal("expected ntfy check in results")
	}
	if ntfy.Passed || !ntfy.Optional {
		t.Fatalf("expected optional failed ntfy result, got %#v", ntfy)
	}
	for _, r := range Failed(results) {
		if r.Name == "ntfy" {
			t.Fatal("optional check should not be reported as failed")
		}
	}
}
