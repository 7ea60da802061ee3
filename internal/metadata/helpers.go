package metadata

import (
	"database/sql"
	"errors"
	"time"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// scanNote reads a row selected with noteColumns. upload_complete is scanned
// as an integer so SQLite (0/1) and PostgreSQL (boolean) share the path.
func scanNote(scanner rowScanner) (*Note, error) {
	var (
		id         string
		name       string
		kind       string
		content    sql.NullString
		complete   sql.NullBool
		createdRaw any
		updatedRaw any
	)
	if err := scanner.Scan(&id, &name, &kind, &content, &complete, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	note := &Note{
		ID:      id,
		Name:    name,
		Type:    NoteType(kind),
		Content: content.String,
	}
	if complete.Valid {
		note.UploadComplete = boolPtr(complete.Bool)
	}
	note.CreatedAt = parseTimeValue(createdRaw)
	note.UpdatedAt = parseTimeValue(updatedRaw)
	return note, nil
}

func nullableString(kind NoteType, value string) any {
	if kind != TypeText {
		return nil
	}
	return value
}

func nullableBool(value *bool) any {
	if value == nil {
		return nil
	}
	return *value
}

func parseTimeValue(value any) time.Time {
	switch v := value.(type) {
	case time.Time:
		return v.UTC()
	case string:
		if t, err := parseTimeString(v); err == nil {
			return t
		}
	case []byte:
		if t, err := parseTimeString(string(v)); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
