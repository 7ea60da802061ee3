package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var validPresets = map[string]struct{}{
	"ultrafast": {}, "superfast": {}, "veryfast": {}, "faster": {}, "fast": {},
	"medium": {}, "slow": {}, "slower": {}, "veryslow": {},
}

// Validate ensures the configuration is usable. Every problem found is
// reported, joined into a single error.
func (c *Config) Validate() error {
	return errors.Join(
		c.validateServer(),
		c.validateDatabase(),
		c.validateTranscode(),
		c.validateNotifications(),
	)
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind %q must be host:port: %w", c.Server.Bind, err)
	}
	if c.Server.MaxUploadBytes < 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	if err := ensurePositiveMap(map[string]int{
		"server.shutdown_timeout_seconds": c.Server.ShutdownTimeoutSeconds,
		"server.sse_keepalive_seconds":    c.Server.SSEKeepaliveSeconds,
		"server.subscriber_buffer":        c.Server.SubscriberBuffer,
	}); err != nil {
		return err
	}
	if c.Server.SystemToken != "" && c.Server.SystemToken == c.Server.APIToken {
		return errors.New("server.system_token must differ from server.api_token")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	raw := strings.TrimSpace(c.Database.URL)
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("database.url: %w", err)
	}
	switch parsed.Scheme {
	case "sqlite", "postgres", "postgresql", "bolt", "memory":
		return nil
	default:
		return fmt.Errorf("database.url scheme %q is not supported (use sqlite, postgres, bolt or memory)", parsed.Scheme)
	}
}

func (c *Config) validateTranscode() error {
	if c.Transcode.MaxConcurrent <= 0 {
		return errors.New("transcode.max_concurrent must be positive")
	}
	if c.Transcode.TimeoutSeconds < 0 {
		return errors.New("transcode.timeout_seconds must be >= 0")
	}
	if _, ok := validPresets[c.Transcode.VideoPreset]; !ok {
		return fmt.Errorf("transcode.video_preset %q is not a libx264 preset", c.Transcode.VideoPreset)
	}
	if c.Transcode.VideoCRF < 0 || c.Transcode.VideoCRF > 51 {
		return errors.New("transcode.video_crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
