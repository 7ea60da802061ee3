// Package main hosts the chest CLI entrypoint and command graph.
//
// "chest serve" runs the notes server in the foreground. The remaining
// commands are maintenance tools: recover and notes operate on the stores
// directly under the daemon lock, status asks a running server over HTTP
// and falls back to local checks. logs reads chest.log, test-notify sends an
// ntfy push, and config scaffolds or validates the TOML file.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
