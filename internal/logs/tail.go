package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const maxLineBytes = 1 << 20

// Tail returns up to limit trailing lines of path and the offset of the end
// of the file. A missing file yields no lines and offset zero.
func Tail(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	end, err := scanLines(file, func(line string) {
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := 0; i < count; i++ {
		lines = append(lines, ring[(start+i)%limit])
	}
	return lines, end, nil
}

// Follow calls emit for every line appended to path after offset, polling
// every poll interval until ctx ends. A file that shrinks below offset was
// rotated or truncated and is read again from the start.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, emit func(string)) error {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, emit)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, emit func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		return offset, nil
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}

	// Only complete lines are emitted; a partial trailing line is re-read
	// on the next poll.
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		emit(strings.TrimRight(line, "\r\n"))
	}
}

func scanLines(r io.ReadSeeker, fn func(string)) (int64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read log file: %w", err)
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek log file: %w", err)
	}
	return end, nil
}

// Filter selects log lines. Zero fields match everything.
type Filter struct {
	NoteID   string
	MinLevel string
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Match reports whether line passes the filter. Console lines carry the
// note id as "[id]" and the level as an upper-case word; JSON lines carry
// "note_id" and "level" keys.
func (f Filter) Match(line string) bool {
	if f.NoteID == "" && f.MinLevel == "" {
		return true
	}
	noteID, level := lineFields(line)
	if f.NoteID != "" && noteID != f.NoteID {
		return false
	}
	if want, ok := levelRank[strings.ToLower(f.MinLevel)]; ok {
		got, known := levelRank[level]
		if !known || got < want {
			return false
		}
	}
	return true
}

func lineFields(line string) (noteID, level string) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var entry struct {
			NoteID string `json:"note_id"`
			Level  string `json:"level"`
		}
		if json.Unmarshal([]byte(trimmed), &entry) == nil {
			return entry.NoteID, strings.ToLower(entry.Level)
		}
	}

	// Console prefix: date time LEVEL [component] [id]: message
	fields := strings.Fields(trimmed)
	if len(fields) > 5 {
		fields = fields[:5]
	}
	for i, field := range fields {
		if i < 2 {
			continue
		}
		if _, ok := levelRank[strings.ToLower(field)]; ok && level == "" {
			level = strings.ToLower(field)
			continue
		}
		if level != "" && strings.HasPrefix(field, "[") {
			noteID = strings.TrimSuffix(strings.TrimSuffix(strings.TrimPrefix(field, "["), ":"), "]")
			break
		}
	}
	return noteID, level
}
