package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"chestnotes/internal/logging"
	"chestnotes/internal/services"
)

// Pool bounds concurrent conversions and contains panics from the wrapped
// Transcoder.
type Pool struct {
	next    Transcoder
	sem     *semaphore.Weighted
	size    int
	active  atomic.Int64
	waiting atomic.Int64
	logger  *slog.Logger
}

// NewPool wraps next so at most size jobs run at once.
func NewPool(next Transcoder, size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		next:   next,
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
		logger: logging.NewComponentLogger(logger, "transcode-pool"),
	}
}

// Transcode waits for a free worker slot and runs the job.
func (p *Pool) Transcode(ctx context.Context, job Job) (err error) {
	p.waiting.Add(1)
	acquireErr := p.sem.Acquire(ctx, 1)
	p.waiting.Add(-1)
	if acquireErr != nil {
		return services.Wrap(services.ErrTranscode, "transcode", "queue", "cancelled while waiting for a worker", acquireErr)
	}
	defer p.sem.Release(1)

	p.active.Add(1)
	defer p.active.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(p.logger, "transcoder panicked", "transcode_panic",
				logging.NoteID(job.NoteID),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "inspect the uploaded file; the note was discarded"),
			)
			err = services.Wrap(services.ErrTranscode, "transcode", "worker", fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	return p.next.Transcode(ctx, job)
}

// Active returns the number of running conversions.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Waiting returns the number of jobs queued for a worker slot.
func (p *Pool) Waiting() int {
	return int(p.waiting.Load())
}

// Size returns the configured concurrency limit.
func (p *Pool) Size() int {
	return p.size
}
