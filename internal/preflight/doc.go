// Package preflight provides readiness checks for the filesystem paths,
// binaries and services the notes server depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before binding its listener and logs every
//     failed check as a warning; text notes keep working without ffmpeg.
//   - The CLI "chest status" command uses individual check functions
//     (CheckDirectoryAccess, CheckNtfy) to display service health.
//
// The ntfy check only runs when a topic is configured.
package preflight
