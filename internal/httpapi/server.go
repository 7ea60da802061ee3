package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chestnotes/internal/blobstore"
	"chestnotes/internal/config"
	"chestnotes/internal/events"
	"chestnotes/internal/ingest"
	"chestnotes/internal/logging"
	"chestnotes/internal/metadata"
	"chestnotes/internal/notes"
)

// Ingester accepts new notes.
type Ingester interface {
	Ingest(ctx context.Context, in ingest.NoteInput, media io.Reader) (ingest.Ack, error)
	Pending() int
}

// NoteService reads and deletes notes.
type NoteService interface {
	List(ctx context.Context) ([]notes.View, error)
	Open(ctx context.Context, id string) (*metadata.Note, *blobstore.Blob, error)
	Delete(ctx context.Context, id string, opts notes.DeleteOptions) error
	Stats(ctx context.Context) (metadata.Stats, error)
}

// EventSource hands out upload outcome subscriptions.
type EventSource interface {
	Subscribe() *events.Subscription
	Unsubscribe(handle string) bool
	Stats() events.Stats
}

// WorkerPool reports transcoder saturation for the status endpoint.
type WorkerPool interface {
	Active() int
	Waiting() int
	Size() int
}

// Deps are the services the handlers call into.
type Deps struct {
	Ingest Ingester
	Notes  NoteService
	Events EventSource
	Pool   WorkerPool
	Logger *slog.Logger
}

// Server owns the gin engine.
type Server struct {
	engine      *gin.Engine
	ingest      Ingester
	notes       NoteService
	events      EventSource
	pool        WorkerPool
	logger      *slog.Logger
	prefix      string
	systemToken string
	origins     []string
	keepalive   time.Duration
	maxUpload   int64
	started     time.Time
}

// New builds the router for cfg.
func New(cfg *config.Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		ingest:      deps.Ingest,
		notes:       deps.Notes,
		events:      deps.Events,
		pool:        deps.Pool,
		logger:      logging.NewComponentLogger(deps.Logger, "http"),
		prefix:      strings.TrimRight(cfg.Server.RoutePrefix, "/"),
		systemToken: cfg.Server.SystemToken,
		origins:     cfg.Server.AllowedOrigins,
		keepalive:   time.Duration(cfg.Server.SSEKeepaliveSeconds) * time.Second,
		maxUpload:   cfg.Server.MaxUploadBytes,
		started:     time.Now(),
	}
	if s.keepalive <= 0 {
		s.keepalive = 20 * time.Second
	}

	engine := gin.New()
	engine.UseRawPath = true
	engine.UnescapePathValues = true
	engine.MaxMultipartMemory = 8 << 20
	engine.Use(
		s.requestID(),
		s.accessLog(),
		s.recovery(),
		s.cors(),
		s.auth(cfg.Server.APIToken),
		s.bodyLimit(),
	)

	engine.GET("/health", s.handleHealth)

	group := engine.Group(s.prefix)
	group.POST("/add", s.handleAdd)
	group.GET("/fetch/all", s.handleFetchAll)
	group.GET("/fetch/:id", s.handleFetch)
	group.HEAD("/fetch/:id", s.handleFetch)
	group.GET("/delete/:id", s.handleDelete)
	group.DELETE("/notes/:id", s.handleDelete)
	group.GET("/notifications", s.handleSSE)
	group.GET("/notifications/ws", s.handleWebsocket)
	group.GET("/status", s.handleStatus)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"status": "Error: not found", "data": "no such route"})
	})

	s.engine = engine
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}
