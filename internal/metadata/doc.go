// Package metadata persists note records for the notes server.
//
// A Store keeps one document per note id: display name, type, inline text
// content and the upload-completion flag that media notes carry while their
// canonical blob is being produced. Backends are chosen by URL scheme through
// Open: SQLite (default, via modernc.org/sqlite), PostgreSQL (lib/pq), bbolt
// and an in-memory map for tests.
//
// Every mutation is a single-document operation. MarkComplete only flips a
// provisional record, so a record that was deleted while its media was being
// processed is never resurrected.
package metadata
