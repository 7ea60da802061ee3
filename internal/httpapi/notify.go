package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"chestnotes/internal/events"
	"chestnotes/internal/logging"
)

const wsWriteTimeout = 10 * time.Second

// handleSSE streams upload outcomes until the client goes away.
func (s *Server) handleSSE(c *gin.Context) {
	ctx := c.Request.Context()
	sub := s.events.Subscribe()
	defer s.events.Unsubscribe(sub.Handle())

	h := c.Writer.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	if _, err := io.WriteString(c.Writer, ": connected\n\n"); err != nil {
		return
	}
	c.Writer.Flush()

	logger := logging.WithContext(ctx, s.logger)
	logger.Debug("sse subscriber connected", logging.String("handle", sub.Handle()))

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("sse subscriber disconnected", logging.String("handle", sub.Handle()))
			return
		case <-ticker.C:
			if _, err := io.WriteString(c.Writer, ": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			err := sse.Encode(c.Writer, sse.Event{
				Id:    strconv.FormatUint(evt.Sequence, 10),
				Event: evt.Name(),
				Data:  evt,
			})
			if err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

// handleWebsocket sends one JSON UploadEvent per message.
func (s *Server) handleWebsocket(c *gin.Context) {
	opts := &websocket.AcceptOptions{}
	if slices.Contains(s.origins, "*") {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = originHosts(s.origins)
	}
	conn, err := websocket.Accept(c.Writer, c.Request, opts)
	if err != nil {
		// Accept has already written the HTTP error.
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	sub := s.events.Subscribe()
	defer s.events.Unsubscribe(sub.Handle())

	// Clients never send data; CloseRead handles control frames and cancels
	// ctx when the peer closes.
	ctx := conn.CloseRead(c.Request.Context())
	logger := logging.WithContext(c.Request.Context(), s.logger)
	logger.Debug("websocket subscriber connected", logging.String("handle", sub.Handle()))

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("websocket subscriber disconnected", logging.String("handle", sub.Handle()))
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		case evt, ok := <-sub.Events():
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt events.UploadEvent) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, evt); err != nil {
		return fmt.Errorf("write upload event: %w", err)
	}
	return nil
}

// originHosts converts allowed origins into the host patterns websocket.Accept expects.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, origin := range origins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, origin)
	}
	return hosts
}
