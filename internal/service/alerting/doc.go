// Package alerting implements the liveness and consistency watchdog.
//
// The Engine receives signals from the aggregator (data received, stage
// changed, option received, SAT and DEM updates) and is ticked periodically
// to evaluate the time-based rules. Every rule key has at most one active
// alert; raising an active rule and clearing an inactive one are no-ops.
package alerting
