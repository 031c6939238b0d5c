// Package alarm contains the alert domain types produced by the watchdog.
//
// An Alert is one raise/clear cycle of a rule. Clone helpers keep callers
// from aliasing the engine's internal records.
package alarm
