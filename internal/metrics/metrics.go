package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/mova-viewer/internal/domain/alarm"
	"github.com/oshokin/mova-viewer/internal/domain/mova"
)

const namespace = "mova"

// Collector owns a private registry with the viewer metrics.
type Collector struct {
	registry *prometheus.Registry

	linesTotal      prometheus.Counter
	recordsTotal    *prometheus.CounterVec
	lineFailures    prometheus.Counter
	snapshotsTotal  prometheus.Counter
	queueDepth      prometheus.Gauge
	recordingErrors prometheus.Counter
	producerErrors  prometheus.Counter
	alertsRaised    *prometheus.CounterVec
	alertsActive    prometheus.Gauge
	notifyFailures  prometheus.Counter
	archiveWrites   *prometheus.CounterVec
}

// New creates a collector with runtime and process metrics included.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		linesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Complete protocol lines processed.",
		}),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Classified records by kind.",
		}, []string{"kind"}),
		lineFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "line_failures_total",
			Help:      "Lines whose processing panicked and was skipped.",
		}),
		snapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_finalized_total",
			Help:      "Snapshots moved into history.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "line_queue_depth",
			Help:      "Lines waiting for the consumer.",
		}),
		recordingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_errors_total",
			Help:      "Failed writes to the recording file.",
		}),
		producerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "producer_errors_total",
			Help:      "Errors reported by the text producer.",
		}),
		alertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "raised_total",
			Help:      "Raised alerts by severity.",
		}, []string{"severity"}),
		alertsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "active",
			Help:      "Currently active alerts.",
		}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "notify_failures_total",
			Help:      "Alert notifications that could not be published.",
		}),
		archiveWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "writes_total",
			Help:      "Snapshot archive writes by result.",
		}, []string{"result"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.linesTotal,
		c.recordsTotal,
		c.lineFailures,
		c.snapshotsTotal,
		c.queueDepth,
		c.recordingErrors,
		c.producerErrors,
		c.alertsRaised,
		c.alertsActive,
		c.notifyFailures,
		c.archiveWrites,
	)

	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// LineProcessed counts one line and its record kind.
func (c *Collector) LineProcessed(kind mova.Kind) {
	if c == nil {
		return
	}

	c.linesTotal.Inc()
	c.recordsTotal.WithLabelValues(kind.String()).Inc()
}

// LineFailed counts a line skipped after a panic.
func (c *Collector) LineFailed() {
	if c != nil {
		c.lineFailures.Inc()
	}
}

// SnapshotFinalized counts a snapshot moved into history.
func (c *Collector) SnapshotFinalized() {
	if c != nil {
		c.snapshotsTotal.Inc()
	}
}

// SetQueueDepth reports the pending line count.
func (c *Collector) SetQueueDepth(n int) {
	if c != nil {
		c.queueDepth.Set(float64(n))
	}
}

// RecordingFailed counts a failed recording write.
func (c *Collector) RecordingFailed() {
	if c != nil {
		c.recordingErrors.Inc()
	}
}

// ProducerFailed counts a producer error.
func (c *Collector) ProducerFailed() {
	if c != nil {
		c.producerErrors.Inc()
	}
}

// AlertRaised counts a raised alert and bumps the active gauge.
func (c *Collector) AlertRaised(a *alarm.Alert) {
	if c == nil || a == nil {
		return
	}

	c.alertsRaised.WithLabelValues(a.Severity.String()).Inc()
	c.alertsActive.Inc()
}

// AlertCleared lowers the active gauge.
func (c *Collector) AlertCleared(*alarm.Alert) {
	if c != nil {
		c.alertsActive.Dec()
	}
}

// ResetActiveAlerts zeroes the active gauge after an engine reset.
func (c *Collector) ResetActiveAlerts() {
	if c != nil {
		c.alertsActive.Set(0)
	}
}

// NotifyFailed counts an alert notification that could not be published.
func (c *Collector) NotifyFailed() {
	if c != nil {
		c.notifyFailures.Inc()
	}
}

// ArchiveWrite counts an archive write by outcome.
func (c *Collector) ArchiveWrite(err error) {
	if c == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}

	c.archiveWrites.WithLabelValues(result).Inc()
}
