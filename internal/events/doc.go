// Package events is the in-process registry of upload outcome subscribers.
//
// Bus.Publish never blocks: every subscriber owns a bounded channel and an
// event that does not fit is dropped for that subscriber and counted. There
// is no replay; a subscriber only sees events published after it joined.
package events
