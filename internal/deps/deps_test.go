package deps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"
)

func stubFFmpeg(t *testing.T, mode string) string {
	t.Helper()
	binDir := t.TempDir()
	path := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	orig := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmdArgs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cmdArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { commandContext = orig })
	return path
}

func TestCheckFFmpegAvailable(t *testing.T) {
	path := stubFFmpeg(t, "full")
	status := CheckFFmpeg(context.Background(), path)
	if !status.Available {
		t.Fatalf("expected ffmpeg to be available, got detail %q", status.Detail)
	}
	if status.Version != "7.0.1" {
		t.Fatalf("unexpected version %q", status.Version)
	}
}

func TestCheckFFmpegMissingEncoder(t *testing.T) {
	path := stubFFmpeg(t, "no-x264")
	status := CheckFFmpeg(context.Background(), path)
	if status.Available {
		t.Fatal("expected ffmpeg without libx264 to be unavailable")
	}
	if status.Detail != "missing encoders: libx264" {
		t.Fatalf("unexpected detail %q", status.Detail)
	}
}

func TestCheckFFmpegNotFound(t *testing.T) {
	status := CheckFFmpeg(context.Background(), "clearly-not-present-ffmpeg")
	if status.Available || status.Detail == "" {
		t.Fatalf("expected missing binary to be reported, got %#v", status)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	if idx := slices.Index(args, "--"); idx >= 0 {
		args = args[idx+1:]
	}
	switch {
	case slices.Contains(args, "-version"):
		fmt.Println("ffmpeg version 7.0.1 Copyright (c) 2000-2024 the FFmpeg developers")
		fmt.Println("built with gcc 13")
	case slices.Contains(args, "-encoders"):
		fmt.Println("Encoders:")
		fmt.Println(" V..... = Video")
		fmt.Println(" ------")
		if os.Getenv("HELPER_MODE") == "full" {
			fmt.Println(" V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)")
		}
		fmt.Println(" A....D aac                  AAC (Advanced Audio Coding)")
	default:
		os.Exit(2)
	}
	os.Exit(0)
}
