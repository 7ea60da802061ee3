// Package notes implements the read and delete paths shared by the HTTP layer,
// the CLI and startup recovery.
//
// Deletion removes the blob before the metadata row so a crash in between
// leaves a record that a system delete can still clean up. A missing blob is
// only tolerated for system deletes; user deletes of an in-flight media note
// fail with services.ErrMissingBlob and keep the record.
package notes
