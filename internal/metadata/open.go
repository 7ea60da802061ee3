package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"chestnotes/internal/logging"
)

// Option configures store construction.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used by the store.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open builds a Store from a URL. Supported schemes: sqlite://<path>,
// postgres:// (or postgresql://), bolt://<path> and memory://.
func Open(ctx context.Context, rawURL string, opts ...Option) (Store, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.NewComponentLogger(o.logger, "metadata")

	rawURL = strings.TrimSpace(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	scheme := strings.ToLower(parsed.Scheme)

	var store Store
	switch scheme {
	case "sqlite":
		path, pathErr := dsnPath(rawURL, scheme)
		if pathErr != nil {
			return nil, pathErr
		}
		store, err = OpenSQLite(ctx, path)
	case "postgres", "postgresql":
		store, err = OpenPostgres(ctx, rawURL)
	case "bolt":
		path, pathErr := dsnPath(rawURL, scheme)
		if pathErr != nil {
			return nil, pathErr
		}
		store, err = OpenBolt(path)
	case "memory", "mem":
		store = NewMemory()
	default:
		return nil, fmt.Errorf("unsupported metadata backend scheme %q", scheme)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("metadata store opened", logging.String("backend", scheme))
	return store, nil
}

func dsnPath(rawURL, scheme string) (string, error) {
	prefix := scheme + "://"
	if len(rawURL) < len(prefix) || !strings.EqualFold(rawURL[:len(prefix)], prefix) {
		return "", fmt.Errorf("%s url %q must start with %s", scheme, rawURL, prefix)
	}
	path := rawURL[len(prefix):]
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%s url %q has no path", scheme, rawURL)
	}
	return path, nil
}

// Redact hides the password in a database URL for display.
func Redact(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.User == nil {
		return rawURL
	}
	return parsed.Redacted()
}
