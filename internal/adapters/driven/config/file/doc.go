// Package file loads searchsync configuration from TOML or YAML files.
//
// Values missing from the file keep their defaults; a handful of
// SEARCHSYNC_* environment variables override the file. Watcher reloads
// the file when it changes so the running scheduler can pick up a new
// sync interval.
package file
