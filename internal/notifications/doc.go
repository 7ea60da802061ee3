// Package notifications pushes note upload outcomes to ntfy.
//
// NewService returns an ntfy-backed implementation when a topic is configured
// and a no-op otherwise, so callers never branch on configuration. The
// events package forwards bus traffic here; nothing in the ingestion path
// waits on a push.
package notifications
