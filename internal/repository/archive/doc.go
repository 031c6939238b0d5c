// Package archive persists finalized snapshots in SQLite.
//
// Every daemon run writes under its own session id, so several runs can share
// one database file and be inspected later with `mova-viewer archive`.
package archive
