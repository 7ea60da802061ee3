package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	StagingDir string `toml:"staging_dir"`
	BlobDir    string `toml:"blob_dir"`
	LogDir     string `toml:"log_dir"`
}

// Server contains HTTP listener and request handling configuration.
type Server struct {
	Bind                   string   `toml:"bind"`
	RoutePrefix            string   `toml:"route_prefix"`
	APIToken               string   `toml:"api_token"`
	SystemToken            string   `toml:"system_token"`
	AllowedOrigins         []string `toml:"allowed_origins"`
	MaxUploadBytes         int64    `toml:"max_upload_bytes"`
	ShutdownTimeoutSeconds int      `toml:"shutdown_timeout_seconds"`
	SSEKeepaliveSeconds    int      `toml:"sse_keepalive_seconds"`
	SubscriberBuffer       int      `toml:"subscriber_buffer"`
}

// Database selects the metadata store backend.
//
// URL accepts sqlite://<path>, postgres://..., bolt://<path> and memory://.
// An empty URL places a SQLite database under paths.data_dir.
type Database struct {
	URL string `toml:"url"`
}

// Transcode contains configuration for the ffmpeg worker pool.
type Transcode struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	MaxConcurrent  int    `toml:"max_concurrent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	VideoPreset    string `toml:"video_preset"`
	VideoCRF       int    `toml:"video_crf"`
	AudioBitrate   string `toml:"audio_bitrate"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Success        bool   `toml:"success"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the notes server.
//
// Configuration sections by subsystem:
//   - Paths: data, staging, blob and log directories
//   - Server: HTTP bind address, route prefix, tokens and limits
//   - Database: metadata store backend
//   - Transcode: ffmpeg binary and worker pool sizing
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Database      Database      `toml:"database"`
	Transcode     Transcode     `toml:"transcode"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("chest.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StagingDir, c.Paths.BlobDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabaseURL returns the metadata store URL, defaulting to a SQLite file in the data directory.
func (c *Config) DatabaseURL() string {
	if url := strings.TrimSpace(c.Database.URL); url != "" {
		return url
	}
	return "sqlite://" + filepath.Join(c.Paths.DataDir, "notes.db")
}

// LockPath returns the daemon's single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "chest.lock")
}

// LogPath returns the server log file under paths.log_dir.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "chest.log")
}

// ShutdownTimeout returns the grace period for in-flight work on shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// TranscodeTimeout returns the per-job transcode limit. Zero means unbounded.
func (c *Config) TranscodeTimeout() time.Duration {
	return time.Duration(c.Transcode.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// ErrConfigExists is returned by WriteSample when the target already exists
// and overwrite was not requested.
var ErrConfigExists = errors.New("config file already exists")

// WriteSample writes the sample configuration to path, or to the default
// location when path is empty, and returns the resolved destination.
func WriteSample(path string, overwrite bool) (string, error) {
	target, err := expandPath(strings.TrimSpace(path))
	if err != nil {
		return "", err
	}
	if target == "" {
		if target, err = DefaultConfigPath(); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	file, err := os.OpenFile(target, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return target, fmt.Errorf("%w at %s", ErrConfigExists, target)
		}
		return target, fmt.Errorf("open %s: %w", target, err)
	}
	if _, err := file.WriteString(sampleConfig); err != nil {
		file.Close()
		return target, fmt.Errorf("write sample config: %w", err)
	}
	return target, file.Close()
}
