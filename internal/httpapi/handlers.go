package httpapi

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chestnotes/internal/events"
	"chestnotes/internal/ingest"
	"chestnotes/internal/metadata"
	"chestnotes/internal/notes"
	"chestnotes/internal/services"
	"chestnotes/internal/transcode"
)

type addRequest struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Content *string `json:"content"`
}

func (s *Server) handleAdd(c *gin.Context) {
	var (
		in    ingest.NoteInput
		media io.Reader
	)
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req addRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, "added", services.Wrap(services.ErrInvalidInput, "http", "add", "decode json body", err))
			return
		}
		in = ingest.NoteInput{ID: req.ID, Name: req.Name, Type: req.Type, Content: req.Content}
	} else {
		form, err := c.MultipartForm()
		if err != nil {
			s.fail(c, "added", services.Wrap(services.ErrInvalidInput, "http", "add", "parse multipart form", err))
			return
		}
		defer func() { _ = form.RemoveAll() }()

		in = ingest.NoteInput{
			ID:   firstValue(form, "id"),
			Name: firstValue(form, "name"),
			Type: firstValue(form, "type"),
		}
		if values, ok := form.Value["content"]; ok && len(values) > 0 {
			content := values[0]
			in.Content = &content
		}
		if files := form.File["content"]; len(files) > 0 {
			file, err := files[0].Open()
			if err != nil {
				s.fail(c, "added", services.Wrap(services.ErrInvalidInput, "http", "add", "open uploaded file", err))
				return
			}
			defer file.Close()
			media = file
		}
	}

	ack, err := s.ingest.Ingest(c.Request.Context(), in, media)
	if err != nil {
		s.fail(c, "added", err)
		return
	}
	resp := envelope{Status: "Added", Data: ack.ID}
	if !ack.Complete {
		complete := false
		resp.UploadComplete = &complete
	}
	c.JSON(http.StatusOK, resp)
}

func firstValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func (s *Server) handleFetchAll(c *gin.Context) {
	views, err := s.notes.List(c.Request.Context())
	if err != nil {
		s.fail(c, "fetched", err)
		return
	}
	if views == nil {
		views = []notes.View{}
	}
	c.JSON(http.StatusOK, envelope{Status: "Fetched", Data: views})
}

// handleFetch streams a committed blob. http.ServeContent handles Range,
// If-Range and HEAD.
func (s *Server) handleFetch(c *gin.Context) {
	id := c.Param("id")
	ctx := services.WithNoteID(c.Request.Context(), id)
	note, blob, err := s.notes.Open(ctx, id)
	if err != nil {
		s.fail(c, "fetched", err)
		return
	}
	defer blob.Close()

	c.Header("Content-Type", transcode.ContentType(note.Type))
	c.Header("Accept-Ranges", "bytes")
	c.Header("Cache-Control", "private, max-age=0")
	http.ServeContent(c.Writer, c.Request.WithContext(ctx), "", blob.ModTime, blob)
}

func (s *Server) handleDelete(c *gin.Context) {
	id := c.Param("id")
	opts := notes.DeleteOptions{System: s.isSystemRequest(c)}
	if err := s.notes.Delete(c.Request.Context(), id, opts); err != nil {
		s.fail(c, "deleted", err)
		return
	}
	c.JSON(http.StatusOK, envelope{Status: "Deleted", Data: id})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StatusReport is the body of the status endpoint.
type StatusReport struct {
	Status    string           `json:"status"`
	Uptime    string           `json:"uptime"`
	Pending   int              `json:"pending"`
	Notes     metadata.Stats   `json:"notes"`
	Events    events.Stats     `json:"events"`
	Transcode *TranscodeStatus `json:"transcode,omitempty"`
}

// TranscodeStatus reports worker pool usage.
type TranscodeStatus struct {
	Active  int `json:"active"`
	Waiting int `json:"waiting"`
	Size    int `json:"size"`
}

func (s *Server) handleStatus(c *gin.Context) {
	stats, err := s.notes.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, "fetched", err)
		return
	}
	report := StatusReport{
		Status:  "ok",
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Pending: s.ingest.Pending(),
		Notes:   stats,
		Events:  s.events.Stats(),
	}
	if s.pool != nil {
		report.Transcode = &TranscodeStatus{Active: s.pool.Active(), Waiting: s.pool.Waiting(), Size: s.pool.Size()}
	}
	c.JSON(http.StatusOK, report)
}
