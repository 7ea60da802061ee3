// Package logs reads the server's log file for `chest logs`.
//
// Tail returns the last N lines with bounded memory, Follow polls for
// appended lines until its context ends, and Filter narrows output to one
// note or a minimum level in either the console or JSON log format.
package logs
