package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chestnotes/internal/services"
)

func receive(t *testing.T, sub *Subscription) UploadEvent {
	t.Helper()
	select {
	case evt, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return UploadEvent{}
	}
}

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(4, nil)
	a := bus.Subscribe()
	b := bus.Subscribe()
	assert.Equal(t, 2, bus.Subscribers())

	bus.Publish(Success("n1", "Walk"))

	for _, sub := range []*Subscription{a, b} {
		evt := receive(t, sub)
		assert.Equal(t, "n1", evt.ID)
		assert.Equal(t, OutcomeSuccess, evt.Outcome)
		assert.Equal(t, "uploadsuccess", evt.Name())
		assert.Equal(t, uint64(1), evt.Sequence)
		assert.False(t, evt.At.IsZero())
	}
}

func TestBusLateSubscriberSeesNoReplay(t *testing.T) {
	bus := NewBus(4, nil)
	bus.Publish(Success("early", ""))

	sub := bus.Subscribe()
	select {
	case evt := <-sub.Events():
		t.Fatalf("unexpected replayed event %+v", evt)
	default:
	}
}

func TestBusPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := NewBus(1, nil)
	slow := bus.Subscribe()
	fast := bus.Subscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	received := 0
	go func() {
		defer wg.Done()
		for range fast.Events() {
			received++
		}
	}()

	done := make(chan struct{})
	go func() {
		for i := range 5 {
			bus.Publish(Success("n", string(rune('a'+i))))
			time.Sleep(5 * time.Millisecond)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	assert.Equal(t, uint64(4), slow.Dropped())
	assert.GreaterOrEqual(t, bus.Stats().Dropped, uint64(4))
	assert.Equal(t, uint64(5), bus.Stats().Published)

	bus.Unsubscribe(fast.Handle())
	wg.Wait()
	assert.Equal(t, uint64(5), uint64(received)+fast.Dropped())
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(1, nil)
	sub := bus.Subscribe()
	require.True(t, bus.Unsubscribe(sub.Handle()))
	assert.False(t, bus.Unsubscribe(sub.Handle()))

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, bus.Subscribers())

	bus.Publish(Success("n1", ""))
}

func TestBusCloseEndsSubscriptions(t *testing.T) {
	bus := NewBus(1, nil)
	sub := bus.Subscribe()
	bus.Close()
	bus.Close()

	_, ok := <-sub.Events()
	assert.False(t, ok)

	late := bus.Subscribe()
	_, ok = <-late.Events()
	assert.False(t, ok)
	bus.Publish(Success("n1", ""))
}

func TestFailureCarriesKind(t *testing.T) {
	err := services.Wrap(services.ErrTranscode, "transcode", "ffmpeg", "bad input", errors.New("exit status 1"))
	evt := Failure("n1", "Clip", err)
	assert.Equal(t, OutcomeError, evt.Outcome)
	assert.Equal(t, "uploaderror", evt.Name())
	assert.Equal(t, "transcode", evt.Kind)
	assert.Contains(t, evt.Error, "bad input")
}

type recordingNotifier struct {
	mu       sync.Mutex
	complete []string
	failed   []string
}

func (r *recordingNotifier) NotifyUploadComplete(_ context.Context, id, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete = append(r.complete, id)
	return nil
}

func (r *recordingNotifier) NotifyUploadFailed(_ context.Context, id, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, id)
	return errors.New("ntfy down")
}

func (r *recordingNotifier) NotifyRecovery(context.Context, int, int) error  { return nil }
func (r *recordingNotifier) NotifyError(context.Context, error, string) error { return nil }
func (r *recordingNotifier) TestNotification(context.Context) error          { return nil }

func (r *recordingNotifier) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.complete), len(r.failed)
}

func TestForwardRelaysOutcomes(t *testing.T) {
	bus := NewBus(4, nil)
	notifier := &recordingNotifier{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		Forward(ctx, bus, notifier, nil)
		close(done)
	}()
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	bus.Publish(Success("ok", "Good"))
	bus.Publish(Failure("bad", "Bad", errors.New("boom")))

	require.Eventually(t, func() bool {
		c, f := notifier.counts()
		return c == 1 && f == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 0, bus.Subscribers())
}
