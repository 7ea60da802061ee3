package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chestnotes/internal/logging"
	"chestnotes/internal/services"
)

// envelope is the response body shape shared by every JSON endpoint.
type envelope struct {
	Status         string `json:"status"`
	Data           any    `json:"data"`
	UploadComplete *bool  `json:"uploadComplete,omitempty"`
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), err != nil && strings.Contains(err.Error(), "request body too large"):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDuplicate), errors.Is(err, services.ErrMissingBlob):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope for verb ("added", "fetched", "deleted").
func (s *Server) fail(c *gin.Context, verb string, err error) {
	code := statusFor(err)
	logger := logging.WithContext(c.Request.Context(), s.logger)
	if code >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "request failed", "request_failed",
			logging.String("route", c.FullPath()),
			logging.Error(err),
			logging.ErrorKind(err),
		)
	} else {
		logger.Info("request rejected",
			logging.String("route", c.FullPath()),
			logging.Int("status", code),
			logging.ErrorKind(err),
			logging.String("reason", err.Error()),
		)
	}
	message := err.Error()
	if code == http.StatusRequestEntityTooLarge {
		message = "upload exceeds the size limit"
	}
	c.AbortWithStatusJSON(code, envelope{Status: "Error: not " + verb, Data: message})
}
