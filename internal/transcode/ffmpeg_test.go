package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chestnotes/internal/metadata"
	"chestnotes/internal/services"
)

func TestFFmpegArgsVideo(t *testing.T) {
	f := NewFFmpeg(WithVideoPreset("medium"), WithCRF(20), WithAudioBitrate("96k"))
	args := f.Args(Job{Kind: metadata.TypeVideo, InputPath: "/in.webm", OutputPath: "/out.mp4"})

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-i /in.webm")
	assert.Contains(t, joined, "-c:v libx264 -preset medium -crf 20")
	assert.Contains(t, joined, "-pix_fmt yuv420p")
	assert.Contains(t, joined, "-c:a aac -b:a 96k")
	assert.Contains(t, joined, "-movflags +faststart -f mp4")
	assert.Equal(t, "/out.mp4", args[len(args)-1])
	assert.NotContains(t, args, "-vn")
}

func TestFFmpegArgsAudio(t *testing.T) {
	f := NewFFmpeg()
	args := f.Args(Job{Kind: metadata.TypeAudio, InputPath: "/in.ogg", OutputPath: "/out.mp4"})

	assert.Contains(t, args, "-vn")
	assert.NotContains(t, args, "libx264")
	assert.Contains(t, strings.Join(args, " "), "-c:a aac -b:a 128k")
	assert.Contains(t, strings.Join(args, " "), "-progress pipe:1")
	assert.Equal(t, "/out.mp4", args[len(args)-1])
}

func TestFFmpegTranscodeSuccess(t *testing.T) {
	withHelperCommand(t, "success")

	dir := t.TempDir()
	in := filepath.Join(dir, "in.webm")
	out := filepath.Join(dir, "out.mp4")
	require.NoError(t, os.WriteFile(in, []byte("raw"), 0o644))

	var mu sync.Mutex
	var reports []Progress
	f := NewFFmpeg(WithBinary("ffmpeg-test"), WithProgress(func(_ Job, p Progress) {
		mu.Lock()
		reports = append(reports, p)
		mu.Unlock()
	}))
	err := f.Transcode(context.Background(), Job{NoteID: "n1", Kind: metadata.TypeVideo, InputPath: in, OutputPath: out})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "canonical:raw", string(data))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reports, 2)
	assert.Equal(t, time.Second, reports[0].OutTime)
	assert.False(t, reports[0].Done)
	assert.True(t, reports[1].Done)
	assert.Equal(t, "2.5x", reports[1].Speed)
}

func TestFFmpegTranscodeFailureCarriesStderr(t *testing.T) {
	withHelperCommand(t, "fail")

	dir := t.TempDir()
	err := NewFFmpeg().Transcode(context.Background(), Job{
		NoteID:     "n1",
		Kind:       metadata.TypeAudio,
		InputPath:  filepath.Join(dir, "in"),
		OutputPath: filepath.Join(dir, "out.mp4"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrTranscode)
	assert.Contains(t, err.Error(), "Invalid data found when processing input")
}

func TestFFmpegTranscodeEmptyOutput(t *testing.T) {
	withHelperCommand(t, "empty")

	dir := t.TempDir()
	err := NewFFmpeg().Transcode(context.Background(), Job{
		Kind:       metadata.TypeAudio,
		InputPath:  filepath.Join(dir, "in"),
		OutputPath: filepath.Join(dir, "out.mp4"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrTranscode)
	assert.Contains(t, err.Error(), "output is empty")
}

func TestFFmpegTranscodeTimeoutKillsProcess(t *testing.T) {
	withHelperCommand(t, "hang")

	dir := t.TempDir()
	started := time.Now()
	err := NewFFmpeg(WithTimeout(200*time.Millisecond)).Transcode(context.Background(), Job{
		Kind:       metadata.TypeVideo,
		InputPath:  filepath.Join(dir, "in"),
		OutputPath: filepath.Join(dir, "out.mp4"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrTranscode)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(started), 10*time.Second)
}

func TestFFmpegRejectsTextJobs(t *testing.T) {
	err := NewFFmpeg().Transcode(context.Background(), Job{Kind: metadata.TypeText, InputPath: "a", OutputPath: "b"})
	assert.ErrorIs(t, err, services.ErrTranscode)
}

func TestTailBufferKeepsLastBytes(t *testing.T) {
	tb := &tailBuffer{limit: 8}
	_, _ = tb.Write([]byte("0123456789"))
	_, _ = tb.Write([]byte("ab"))
	assert.Equal(t, "456789ab", tb.String())
}

func withHelperCommand(t *testing.T, mode string) {
	t.Helper()
	orig := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmdArgs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cmdArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { commandContext = orig })
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	if idx := slices.Index(args, "--"); idx >= 0 {
		args = args[idx+1:]
	}
	var input string
	if idx := slices.Index(args, "-i"); idx >= 0 && idx+1 < len(args) {
		input = args[idx+1]
	}
	output := args[len(args)-1]

	switch os.Getenv("HELPER_MODE") {
	case "success":
		raw, err := os.ReadFile(input)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("out_time_us=1000000")
		fmt.Println("speed=1.0x")
		fmt.Println("progress=continue")
		fmt.Println("out_time_us=2000000")
		fmt.Println("speed=2.5x")
		fmt.Println("progress=end")
		if err := os.WriteFile(output, append([]byte("canonical:"), raw...), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "ffmpeg version n7.0")
		fmt.Fprintln(os.Stderr, "in: Invalid data found when processing input")
		os.Exit(1)
	case "empty":
		if err := os.WriteFile(output, nil, 0o644); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	case "hang":
		time.Sleep(30 * time.Second)
		os.Exit(0)
	default:
		os.Exit(2)
	}
}
