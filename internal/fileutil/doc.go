// Package fileutil holds the file primitives shared by the blob store and the
// ingestion staging area: atomic streamed writes, tolerant removal and stale
// temp-file sweeping.
package fileutil
