package events

import (
	"context"
	"log/slog"

	"chestnotes/internal/logging"
	"chestnotes/internal/notifications"
)

// Forward relays bus events to the push notifier until ctx ends or the bus
// closes. Delivery failures are logged and otherwise ignored.
func Forward(ctx context.Context, bus *Bus, notifier notifications.Service, logger *slog.Logger) {
	if bus == nil || notifier == nil {
		return
	}
	logger = logging.NewComponentLogger(logger, "notify-forwarder")
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub.Handle())

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			var err error
			if evt.Outcome == OutcomeSuccess {
				err = notifier.NotifyUploadComplete(ctx, evt.ID, evt.Note)
			} else {
				err = notifier.NotifyUploadFailed(ctx, evt.ID, evt.Note, evt.Error)
			}
			if err != nil && ctx.Err() == nil {
				logging.WarnWithContext(logger, "push notification failed", "notify_failed",
					logging.NoteID(evt.ID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "upload outcome was not pushed"),
					logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
				)
			}
		}
	}
}
