package httpapi

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chestnotes/internal/logging"
	"chestnotes/internal/services"
)

const (
	headerRequestID = "X-Request-ID"
	headerTask      = "X-Chest-Task"
)

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(headerRequestID))
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		c.Header(headerRequestID, rid)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Request.URL.Path == "/health" {
			level = slog.LevelDebug
		}
		logging.WithContext(c.Request.Context(), s.logger).Log(c.Request.Context(), level, "http request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Int("bytes", c.Writer.Size()),
			logging.Duration("elapsed", time.Since(started)),
			logging.String("client", c.ClientIP()),
		)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logging.ErrorWithContext(logging.WithContext(c.Request.Context(), s.logger), "handler panicked", "http_panic",
			logging.String("path", c.Request.URL.Path),
			logging.String("panic", fmt.Sprint(recovered)),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{Status: "Error: internal", Data: "internal server error"})
	})
}

func (s *Server) cors() gin.HandlerFunc {
	anyOrigin := slices.Contains(s.origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (anyOrigin || slices.Contains(s.origins, origin)) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, HEAD, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Range, X-Request-ID, "+headerTask)
			c.Header("Access-Control-Expose-Headers", "Content-Range, Accept-Ranges, Content-Length, "+headerRequestID)
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// auth validates bearer tokens. EventSource clients cannot set headers, so
// the token is also accepted as the access_token query parameter.
func (s *Server) auth(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		presented := c.Query("access_token")
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			presented = strings.TrimPrefix(header, "Bearer ")
		}
		if !tokenMatches(presented, token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{Status: "Error: unauthorized", Data: "missing or invalid bearer token"})
			return
		}
		c.Next()
	}
}

func (s *Server) bodyLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.maxUpload > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
		}
		c.Next()
	}
}

// isSystemRequest reports whether the request carries the system task token.
func (s *Server) isSystemRequest(c *gin.Context) bool {
	if s.systemToken == "" {
		return false
	}
	return tokenMatches(c.GetHeader(headerTask), s.systemToken)
}

func tokenMatches(presented, want string) bool {
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(want)) == 1
}
