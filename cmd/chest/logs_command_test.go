package main

import (
	"os"
	"strings"
	"testing"
)

func TestLogsCommandFiltersByNote(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := strings.Join([]string{
		"2026-01-02 10:00:00 INFO daemon: chest daemon started",
		"2026-01-02 10:00:01 INFO ingest [clip-1]: staged upload",
		"2026-01-02 10:00:02 WARN ingest [clip-2]: transcode failed",
		"2026-01-02 10:00:03 INFO ingest [clip-1]: note completed",
	}, "\n") + "\n"
	if err := os.WriteFile(env.cfg.LogPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--note", "clip-1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "staged upload")
	requireContains(t, out, "note completed")
	if strings.Contains(out, "clip-2") || strings.Contains(out, "daemon started") {
		t.Fatalf("unexpected lines in filtered output: %q", out)
	}

	out, _, err = runCLI(t, []string{"logs", "-n", "2", "--level", "warn"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.TrimSpace(out) != "2026-01-02 10:00:02 WARN ingest [clip-2]: transcode failed" {
		t.Fatalf("unexpected level-filtered output: %q", out)
	}
}

func TestLogsCommandRejectsUnknownLevel(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"logs", "--level", "loud"}, env.configPath); err == nil {
		t.Fatal("expected unknown level to be rejected")
	}
}

func TestLogsCommandWithoutLogFile(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "" {
		t.Fatalf("expected no output, got %q", out)
	}
}
