package transcode

import (
	"context"

	"chestnotes/internal/metadata"
)

// Job describes one conversion. InputPath and OutputPath are owned by the caller.
type Job struct {
	NoteID     string
	Kind       metadata.NoteType
	InputPath  string
	OutputPath string
}

// Transcoder converts a job's input into canonical bytes at its output path.
// Failures are reported as a single error tagged services.ErrTranscode.
type Transcoder interface {
	Transcode(ctx context.Context, job Job) error
}

// Func adapts a plain function to Transcoder.
type Func func(ctx context.Context, job Job) error

func (f Func) Transcode(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// Extension is the file extension of canonical output.
const Extension = ".mp4"

// ContentType returns the MIME type served for a canonical blob.
func ContentType(kind metadata.NoteType) string {
	switch kind {
	case metadata.TypeAudio:
		return "audio/mp4"
	case metadata.TypeVideo:
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
