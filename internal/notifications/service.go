package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chestnotes/internal/config"
)

const userAgent = "Chest-Notes/0.1.0"

// Service defines the push notification surface.
type Service interface {
	NotifyUploadComplete(ctx context.Context, noteID, name string) error
	NotifyUploadFailed(ctx context.Context, noteID, name, reason string) error
	NotifyRecovery(ctx context.Context, purged, failed int) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		success:  cfg.Notifications.Success,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	success  bool
	errors   bool
}

func (n *ntfyService) NotifyUploadComplete(ctx context.Context, noteID, name string) error {
	if !n.success {
		return nil
	}
	data := payload{
		title:   "Chest - Note Ready",
		message: fmt.Sprintf("✅ Ready to play: %s", displayName(noteID, name)),
		tags:    []string{"chest", "upload", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploadFailed(ctx context.Context, noteID, name, reason string) error {
	if !n.errors {
		return nil
	}
	message := fmt.Sprintf("❌ Upload failed: %s", displayName(noteID, name))
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("%s\n%s", message, reason)
	}
	data := payload{
		title:    "Chest - Upload Failed",
		message:  message,
		tags:     []string{"chest", "upload", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRecovery(ctx context.Context, purged, failed int) error {
	if purged == 0 && failed == 0 {
		return nil
	}
	if failed > 0 && !n.errors {
		return nil
	}
	message := fmt.Sprintf("Recovery purged %d unfinished notes", purged)
	priority := ""
	if failed > 0 {
		message = fmt.Sprintf("%s; %d could not be removed", message, failed)
		priority = "high"
	}
	data := payload{
		title:    "Chest - Recovery",
		message:  message,
		tags:     []string{"chest", "recovery"},
		priority: priority,
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Chest - Error",
		message:  builder.String(),
		tags:     []string{"chest", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Chest - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"chest", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func displayName(noteID, name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == noteID {
		return noteID
	}
	return fmt.Sprintf("%s (%s)", name, noteID)
}

type noopService struct{}

func (noopService) NotifyUploadComplete(context.Context, string, string) error       { return nil }
func (noopService) NotifyUploadFailed(context.Context, string, string, string) error { return nil }
func (noopService) NotifyRecovery(context.Context, int, int) error                   { return nil }
func (noopService) NotifyError(context.Context, error, string) error                 { return nil }
func (noopService) TestNotification(context.Context) error                           { return nil }
