package daemon

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"chestnotes/internal/logging"
)

func TestAPIServerShutdownReleasesStreams(t *testing.T) {
	done := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-done:
		case <-r.Context().Done():
		}
	})

	srv := newAPIServer("127.0.0.1:0", handler, logging.NewNop())
	srv.onShutdown(func() { close(done) })
	if err := srv.start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	resp, err := http.Get("http://" + srv.addr() + "/stream")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := io.ReadAll(resp.Body); err != nil {
		t.Fatalf("stream should end cleanly: %v", err)
	}
}

func TestAPIServerListenError(t *testing.T) {
	srv := newAPIServer("127.0.0.1:-1", http.NotFoundHandler(), logging.NewNop())
	if err := srv.start(); err == nil {
		t.Fatal("expected listen error for invalid port")
	}
}
