package metadata

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"chestnotes/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	sqliteConstraintUnique  = 2067
	sqliteConstraintPK      = 1555
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const noteColumns = "id, name, type, content, upload_complete, created_at, updated_at"

// SQLite stores notes in a single SQLite database file.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite initializes or connects to the notes database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}
	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &SQLite{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *SQLite) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Insert writes a new record. An existing id yields services.ErrDuplicate.
func (s *SQLite) Insert(ctx context.Context, note *Note) error {
	now := time.Now().UTC()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO notes (id, name, type, content, upload_complete, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.Name, string(note.Type), nullableString(note.Type, note.Content),
		nullableBool(note.UploadComplete), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return services.Duplicate("metadata", note.ID, err)
		}
		return services.Wrap(services.ErrStore, "metadata", "insert", note.ID, err)
	}
	note.CreatedAt, note.UpdatedAt = now, now
	return nil
}

// Get fetches a record by id. Returns nil when not found.
func (s *SQLite) Get(ctx context.Context, id string) (*Note, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+noteColumns+" FROM notes WHERE id = ?", id)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "metadata", "get", id, err)
	}
	return note, nil
}

// List returns every record in creation order.
func (s *SQLite) List(ctx context.Context) ([]*Note, error) {
	return s.query(ctx, "list", "SELECT "+noteColumns+" FROM notes ORDER BY seq")
}

// ListIncomplete returns media records still awaiting their blob.
func (s *SQLite) ListIncomplete(ctx context.Context) ([]*Note, error) {
	return s.query(ctx, "list incomplete", "SELECT "+noteColumns+" FROM notes WHERE upload_complete = 0 ORDER BY seq")
}

func (s *SQLite) query(ctx context.Context, operation, query string, args ...any) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "metadata", operation, "", err)
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrStore, "metadata", operation, "scan", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStore, "metadata", operation, "", err)
	}
	return notes, nil
}

// MarkComplete flips a provisional record to complete. It reports false when
// no provisional record with that id exists.
func (s *SQLite) MarkComplete(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		"UPDATE notes SET upload_complete = 1, updated_at = ? WHERE id = ? AND upload_complete = 0",
		time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return false, services.Wrap(services.ErrStore, "metadata", "mark complete", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, services.Wrap(services.ErrStore, "metadata", "mark complete", id, err)
	}
	return affected == 1, nil
}

// Delete removes a record and reports how many rows were removed.
func (s *SQLite) Delete(ctx context.Context, id string) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return 0, services.Wrap(services.ErrStore, "metadata", "delete", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, services.Wrap(services.ErrStore, "metadata", "delete", id, err)
	}
	return affected, nil
}

// Stats returns record counts by kind.
func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(1),
		COALESCE(SUM(CASE WHEN type = 'text' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN type <> 'text' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN upload_complete = 0 THEN 1 ELSE 0 END), 0)
		FROM notes`).Scan(&stats.Total, &stats.Text, &stats.Media, &stats.Incomplete)
	if err != nil {
		return Stats{}, services.Wrap(services.ErrStore, "metadata", "stats", "", err)
	}
	return stats, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func sqliteCode(err error) (int, bool) {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code(), true
	}
	return 0, false
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok && code&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isSQLiteUnique(err error) bool {
	if code, ok := sqliteCode(err); ok && (code == sqliteConstraintUnique || code == sqliteConstraintPK) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
