// Package services defines shared utilities consumed by the ingestion
// pipeline, the stores and the HTTP layer.
//
// Key responsibilities:
//   - Context helpers that stamp note IDs, correlation identifiers and the
//     system-task flag for logging and delete policy.
//   - Structured error markers plus the Wrap helper that classify failures
//     (invalid input, store, transcode, blob commit, missing blob, not found,
//     delete) so callers can map them with errors.Is.
//
// The package has no dependencies on the rest of the module so every layer
// can import it.
package services
