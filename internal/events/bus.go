package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"chestnotes/internal/logging"
)

const defaultBuffer = 16

// Subscription is one registered observer.
type Subscription struct {
	handle  string
	ch      chan UploadEvent
	dropped atomic.Uint64
}

// Handle identifies the subscription for Unsubscribe.
func (s *Subscription) Handle() string { return s.handle }

// Events is closed when the subscription is removed or the bus closes.
func (s *Subscription) Events() <-chan UploadEvent { return s.ch }

// Dropped reports events discarded because this subscriber fell behind.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Stats summarizes bus activity.
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

// Bus fans UploadEvents out to subscribers.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]*Subscription
	buffer  int
	nextSeq uint64
	closed  bool
	dropped uint64
	logger  *slog.Logger
}

// NewBus creates a bus whose subscribers buffer up to buffer events.
func NewBus(buffer int, logger *slog.Logger) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
		logger: logging.NewComponentLogger(logger, "events"),
	}
}

// Subscribe registers a new observer. Subscribing to a closed bus returns a
// subscription whose channel is already closed.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{handle: uuid.NewString(), ch: make(chan UploadEvent, b.buffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub.handle] = sub
	b.logger.Debug("subscriber added", logging.String("handle", sub.handle), logging.Int("subscribers", len(b.subs)))
	return sub
}

// Unsubscribe removes the observer and closes its channel. It reports whether
// the handle was registered.
func (b *Bus) Unsubscribe(handle string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[handle]
	if !ok {
		return false
	}
	delete(b.subs, handle)
	close(sub.ch)
	b.logger.Debug("subscriber removed", logging.String("handle", handle), logging.Int("subscribers", len(b.subs)))
	return true
}

// Publish stamps the event and delivers it to every subscriber that has room.
func (b *Bus) Publish(evt UploadEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.nextSeq++
	evt.Sequence = b.nextSeq
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	for handle, sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			sub.dropped.Add(1)
			b.dropped++
			logging.WarnWithContext(b.logger, "subscriber buffer full; event dropped", "event_dropped",
				logging.String("handle", handle),
				logging.NoteID(evt.ID),
				logging.String(logging.FieldImpact, "subscriber misses this upload outcome"),
				logging.String(logging.FieldErrorHint, "client is not reading its notification stream"),
			)
		}
	}
}

// Subscribers returns the number of registered observers.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{Subscribers: len(b.subs), Published: b.nextSeq, Dropped: b.dropped}
}

// Close removes every subscriber. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for handle, sub := range b.subs {
		delete(b.subs, handle)
		close(sub.ch)
	}
}
