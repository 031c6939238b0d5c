// Package viewer runs the mova-viewer daemon.
//
// Run wires a text producer (replay or poll) through the ingestion pipeline
// into the snapshot aggregator and the alert engine, then serves the result
// over gRPC and HTTP until the context is cancelled. Finalized snapshots are
// optionally archived to SQLite and alert transitions published to NATS.
//
// Summarize and BrowseArchive are the offline counterparts used by the
// summarize and archive subcommands.
package viewer
