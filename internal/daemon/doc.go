// Package daemon runs the long-lived notes server process.
//
// It wires configuration, the metadata and blob stores, the transcoder
// pool, the notification bus and the HTTP layer into a single lifecycle
// with flock-based locking to prevent multiple instances. Start purges
// notes left incomplete by a previous process before the listener opens;
// Stop drains HTTP, cancels in-flight completion jobs and waits for their
// rollback. Recover and DeleteNote provide the same maintenance offline
// under the same lock.
//
// Keep orchestration logic here: ingestion and deletion rules live in
// their own packages while the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
