// Package ingest accepts new notes and drives media through transcoding.
//
// Text notes are written synchronously. Media uploads are spooled to the
// staging directory, recorded with uploadComplete=false and acknowledged
// before any transcoding happens. A detached job rooted in the coordinator's
// base context then transcodes the spool, commits the blob and only then
// flips the completion flag, publishing the outcome on the event bus. Any
// failure after the acknowledgement removes the provisional record and its
// blob; recovery handles jobs cut short by a crash or shutdown.
package ingest
