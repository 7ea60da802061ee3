package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"chestnotes/internal/services"
)

const (
	postgresOperationTimeout = 5 * time.Second
	postgresUniqueViolation  = "23505"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS notes (
    seq BIGSERIAL PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    type TEXT NOT NULL CHECK (type IN ('text', 'audio', 'video')),
    content TEXT,
    upload_complete BOOLEAN,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notes_upload_complete ON notes (upload_complete);`

// Postgres stores notes in a PostgreSQL table.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects using a lib/pq DSN and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	initCtx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()
	if err := db.PingContext(initCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(initCtx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Insert(ctx context.Context, note *Note) error {
	var created, updated time.Time
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO notes (id, name, type, content, upload_complete)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		note.ID, note.Name, string(note.Type), nullableString(note.Type, note.Content), nullableBool(note.UploadComplete),
	).Scan(&created, &updated)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == postgresUniqueViolation {
			return services.Duplicate("metadata", note.ID, err)
		}
		return services.Wrap(services.ErrStore, "metadata", "insert", note.ID, err)
	}
	note.CreatedAt, note.UpdatedAt = created.UTC(), updated.UTC()
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*Note, error) {
	row := p.db.QueryRowContext(ctx, "SELECT "+noteColumns+" FROM notes WHERE id = $1", id)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "metadata", "get", id, err)
	}
	return note, nil
}

func (p *Postgres) List(ctx context.Context) ([]*Note, error) {
	return p.query(ctx, "list", "SELECT "+noteColumns+" FROM notes ORDER BY seq")
}

func (p *Postgres) ListIncomplete(ctx context.Context) ([]*Note, error) {
	return p.query(ctx, "list incomplete", "SELECT "+noteColumns+" FROM notes WHERE upload_complete = FALSE ORDER BY seq")
}

func (p *Postgres) query(ctx context.Context, operation, query string) ([]*Note, error) {
	rows, err := p.db.QueryContext(ctx, query)
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

func (p *Postgres) MarkComplete(ctx context.Context, id string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		"UPDATE notes SET upload_complete = TRUE, updated_at = NOW() WHERE id = $1 AND upload_complete = FALSE", id)
	if err != nil {
		return false, services.Wrap(services.ErrStore, "metadata", "mark complete", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, services.Wrap(services.ErrStore, "metadata", "mark complete", id, err)
	}
	return affected == 1, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) (int64, error) {
	res, err := p.db.ExecContext(ctx, "DELETE FROM notes WHERE id = $1", id)
	if err != nil {
		return 0, services.Wrap(services.ErrStore, "metadata", "delete", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, services.Wrap(services.ErrStore, "metadata", "delete", id, err)
	}
	return affected, nil
}

func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := p.db.QueryRowContext(ctx, `SELECT
		COUNT(1),
		COUNT(1) FILTER (WHERE type = 'text'),
		COUNT(1) FILTER (WHERE type <> 'text'),
		COUNT(1) FILTER (WHERE upload_complete = FALSE)
		FROM notes`).Scan(&stats.Total, &stats.Text, &stats.Media, &stats.Incomplete)
	if err != nil {
		return Stats{}, services.Wrap(services.ErrStore, "metadata", "stats", "", err)
	}
	return stats, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
