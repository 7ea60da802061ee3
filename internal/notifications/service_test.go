package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"chestnotes/internal/config"
	"chestnotes/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyUploadComplete(context.Background(), "n1", "Walk"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type capture struct {
	calls    int
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	got := &capture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		got.calls++
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		got.body = string(body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}))
	t.Cleanup(server.Close)
	return server, got
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "upload complete",
			send:          func(s notifications.Service) error { return s.NotifyUploadComplete(context.Background(), "n1", "Morning walk") },
			expectTitle:   "Chest - Note Ready",
			expectMessage: "✅ Ready to play: Morning walk (n1)",
			expectTags:    "chest,upload,completed",
		},
		{
			name: "upload failed",
			send: func(s notifications.Service) error {
				return s.NotifyUploadFailed(context.Background(), "n2", "n2", "transcode error: bad input")
			},
			expectTitle:    "Chest - Upload Failed",
			expectMessage:  "❌ Upload failed: n2\ntranscode error: bad input",
			expectTags:     "chest,upload,failed",
			expectPriority: "high",
		},
		{
			name:           "recovery with failures",
			send:           func(s notifications.Service) error { return s.NotifyRecovery(context.Background(), 3, 1) },
			expectTitle:    "Chest - Recovery",
			expectMessage:  "Recovery purged 3 unfinished notes; 1 could not be removed",
			expectTags:     "chest,recovery",
			expectPriority: "high",
		},
		{
			name:           "error",
			send:           func(s notifications.Service) error { return s.NotifyError(context.Background(), errors.New("disk full"), "blob commit") },
			expectTitle:    "Chest - Error",
			expectMessage:  "❌ Error with blob commit: disk full",
			expectTags:     "chest,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, got := newCaptureServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL

			if err := tc.send(notifications.NewService(&cfg)); err != nil {
				t.Fatalf("send: %v", err)
			}
			if got.title != tc.expectTitle {
				t.Errorf("title = %q, want %q", got.title, tc.expectTitle)
			}
			if got.body != tc.expectMessage {
				t.Errorf("body = %q, want %q", got.body, tc.expectMessage)
			}
			if got.tags != tc.expectTags {
				t.Errorf("tags = %q, want %q", got.tags, tc.expectTags)
			}
			if got.priority != tc.expectPriority {
				t.Errorf("priority = %q, want %q", got.priority, tc.expectPriority)
			}
		})
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	server, got := newCaptureServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Success = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(&cfg)

	ctx := context.Background()
	_ = svc.NotifyUploadComplete(ctx, "n1", "")
	_ = svc.NotifyUploadFailed(ctx, "n1", "", "boom")
	_ = svc.NotifyRecovery(ctx, 0, 0)
	if got.calls != 0 {
		t.Fatalf("expected no requests, got %d", got.calls)
	}
	if err := svc.TestNotification(ctx); err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if got.calls != 1 {
		t.Fatalf("expected test notification to bypass toggles, got %d calls", got.calls)
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server, _ := newCaptureServer(t, http.StatusBadGateway)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
}
