// Package metrics exposes ingestion and alert counters to Prometheus.
//
// Every recording method is safe on a nil *Collector so components can run
// without metrics.
package metrics
