package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"chestnotes/internal/logging"
	"chestnotes/internal/metadata"
	"chestnotes/internal/services"
)

var commandContext = exec.CommandContext

const (
	stderrTailBytes = 4096
	killWaitDelay   = 5 * time.Second
)

// Progress is one ffmpeg -progress report.
type Progress struct {
	OutTime time.Duration
	Speed   string
	Done    bool
}

// Option configures the FFmpeg transcoder.
type Option func(*FFmpeg)

// WithBinary overrides the ffmpeg executable.
func WithBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary != "" {
			f.binary = binary
		}
	}
}

// WithVideoPreset sets the libx264 preset.
func WithVideoPreset(preset string) Option {
	return func(f *FFmpeg) {
		if preset != "" {
			f.preset = preset
		}
	}
}

// WithCRF sets the libx264 constant rate factor.
func WithCRF(crf int) Option {
	return func(f *FFmpeg) {
		f.crf = crf
	}
}

// WithAudioBitrate sets the AAC bitrate (e.g. "128k").
func WithAudioBitrate(bitrate string) Option {
	return func(f *FFmpeg) {
		if bitrate != "" {
			f.audioBitrate = bitrate
		}
	}
}

// WithTimeout bounds each conversion. Zero leaves it unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(f *FFmpeg) {
		f.timeout = timeout
	}
}

// WithLogger sets the logger used for progress and failures.
func WithLogger(logger *slog.Logger) Option {
	return func(f *FFmpeg) {
		f.logger = logger
	}
}

// WithProgress registers a callback for progress reports.
func WithProgress(fn func(Job, Progress)) Option {
	return func(f *FFmpeg) {
		f.progress = fn
	}
}

// FFmpeg runs the ffmpeg command-line tool.
type FFmpeg struct {
	binary       string
	preset       string
	crf          int
	audioBitrate string
	timeout      time.Duration
	logger       *slog.Logger
	progress     func(Job, Progress)
}

// NewFFmpeg constructs a transcoder using defaults.
func NewFFmpeg(opts ...Option) *FFmpeg {
	f := &FFmpeg{
		binary:       "ffmpeg",
		preset:       "veryfast",
		crf:          23,
		audioBitrate: "128k",
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "transcode")
	return f
}

// Args returns the ffmpeg arguments for job.
func (f *FFmpeg) Args(job Job) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", job.InputPath}
	switch job.Kind {
	case metadata.TypeVideo:
		args = append(args,
			"-map", "0:v:0", "-map", "0:a:0?",
			"-c:v", "libx264", "-preset", f.preset, "-crf", strconv.Itoa(f.crf),
			"-pix_fmt", "yuv420p", "-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
			"-c:a", "aac", "-b:a", f.audioBitrate,
		)
	default:
		args = append(args,
			"-vn", "-map", "0:a:0",
			"-c:a", "aac", "-b:a", f.audioBitrate,
		)
	}
	return append(args,
		"-movflags", "+faststart", "-f", "mp4",
		"-progress", "pipe:1", "-nostats",
		job.OutputPath,
	)
}

// Transcode runs ffmpeg for job and verifies that output was produced.
func (f *FFmpeg) Transcode(ctx context.Context, job Job) error {
	if err := validateJob(job); err != nil {
		return err
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	logger := logging.WithContext(ctx, f.logger).With(logging.NoteID(job.NoteID))

	cmd := commandContext(ctx, f.binary, f.Args(job)...) //nolint:gosec
	isolateProcessGroup(cmd)
	cmd.WaitDelay = killWaitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrTranscode, "transcode", "ffmpeg", "stdout pipe", err)
	}
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrTranscode, "transcode", "ffmpeg", "start", err)
	}
	f.readProgress(stdout, job, logger)

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return services.Wrap(services.ErrTranscode, "transcode", "ffmpeg", "interrupted", ctxErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = "no diagnostic output"
		}
		return services.Wrap(services.ErrTranscode, "transcode", "ffmpeg", lastLine(detail), err)
	}

	info, err := os.Stat(job.OutputPath)
	if err != nil {
		return services.Wrap(services.ErrTranscode, "transcode", "ffmpeg", "output missing", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrTranscode, "transcode", "ffmpeg", "output is empty", nil)
	}
	logger.Info("transcode finished",
		logging.String("kind", string(job.Kind)),
		logging.Int64("bytes", info.Size()),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func validateJob(job Job) error {
	switch {
	case job.InputPath == "":
		return services.Wrap(services.ErrTranscode, "transcode", "validate", "input path required", nil)
	case job.OutputPath == "":
		return services.Wrap(services.ErrTranscode, "transcode", "validate", "output path required", nil)
	case !job.Kind.IsMedia():
		return services.Wrap(services.ErrTranscode, "transcode", "validate", fmt.Sprintf("unsupported kind %q", job.Kind), nil)
	}
	return nil
}

// readProgress consumes ffmpeg's key=value progress stream until EOF.
func (f *FFmpeg) readProgress(r io.Reader, job Job, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	var current Progress
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// ffmpeg reports microseconds under both keys.
			if us, err := strconv.ParseInt(value, 10, 64); err == nil {
				current.OutTime = time.Duration(us) * time.Microsecond
			}
		case "speed":
			current.Speed = value
		case "progress":
			current.Done = value == "end"
			logger.Debug("transcode progress",
				logging.Duration("out_time", current.OutTime),
				logging.String("speed", current.Speed),
				logging.Bool("done", current.Done),
			)
			if f.progress != nil {
				f.progress(job, current)
			}
		}
	}
	// Drain anything left so ffmpeg never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

func lastLine(s string) string {
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

var errNoProcess = errors.New("process not started")
