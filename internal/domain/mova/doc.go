// Package mova contains the domain model of the MOVA telemetry stream.
//
// A Record is one classified protocol line with a typed Payload per Kind.
// A Snapshot aggregates every record observed during one stage interval,
// with per-link state in LinkState. Clone helpers return fully independent
// copies so callers never alias the aggregator's working state.
package mova
