// Package httpapi exposes notes over HTTP using gin.
//
// Routes live under the configured prefix (default /chest-of-notes): add,
// fetch/all, fetch/:id (range aware), delete, and upload outcome streams over
// SSE and websocket. Handlers only translate between HTTP and the ingest and
// notes services; nothing here waits on transcoding.
package httpapi
