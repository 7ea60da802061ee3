package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrStore        = errors.New("store error")
	ErrDuplicate    = errors.New("duplicate note id")
	ErrTranscode    = errors.New("transcode error")
	ErrBlobCommit   = errors.New("blob commit error")
	ErrMissingBlob  = errors.New("missing blob")
	ErrNotFound     = errors.New("not found")
	ErrDelete       = errors.New("delete error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStore
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short classification label for logs and API responses.
// ErrDuplicate is checked before ErrStore since duplicates carry both markers.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMissingBlob):
		return "missing_blob"
	case errors.Is(err, ErrDelete):
		return "delete"
	case errors.Is(err, ErrTranscode):
		return "transcode"
	case errors.Is(err, ErrBlobCommit):
		return "blob_commit"
	case errors.Is(err, ErrStore):
		return "store"
	default:
		return "internal"
	}
}

// Duplicate tags a store failure caused by an existing note id.
func Duplicate(component, id string, err error) error {
	detail := buildDetail(component, "insert", fmt.Sprintf("note %q already exists", id))
	if err != nil {
		return fmt.Errorf("%w: %w: %s: %w", ErrStore, ErrDuplicate, detail, err)
	}
	return fmt.Errorf("%w: %w: %s", ErrStore, ErrDuplicate, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
