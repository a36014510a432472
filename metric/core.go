package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics, independent of which
// radar vendor or component produced them.
type Metrics struct {
	RadarStatus        *prometheus.GaugeVec
	BeaconsReceived     *prometheus.CounterVec
	BeaconsDropped      *prometheus.CounterVec
	ReportsProcessed    *prometheus.CounterVec
	SpokesProcessed     *prometheus.CounterVec
	SpokesDropped       *prometheus.CounterVec
	ProcessingDuration  *prometheus.HistogramVec
	ErrorsTotal         *prometheus.CounterVec
	HealthCheckStatus   *prometheus.GaugeVec
	ControlSetsTotal    *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all platform metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RadarStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "mayara",
				Subsystem: "radar",
				Name:      "status",
				Help:      "Radar status (0=Off, 1=Standby, 2=Warming, 3=Transmit)",
			},
			[]string{"radar_id", "vendor"},
		),

		BeaconsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mayara",
				Subsystem: "discovery",
				Name:      "beacons_received_total",
				Help:      "Total number of beacon datagrams received",
			},
			[]string{"vendor", "nic"},
		),

		BeaconsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mayara",
				Subsystem: "discovery",
				Name:      "beacons_dropped_total",
				Help:      "Total number of malformed beacon datagrams dropped",
			},
			[]string{"vendor"},
		),

		ReportsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mayara",
				Subsystem: "session",
				Name:      "reports_processed_total",
				Help:      "Total number of status report frames parsed",
			},
			[]string{"radar_id", "vendor"},
		),

		SpokesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mayara",
				Subsystem: "spoke",
				Name:      "processed_total",
				Help:      "Total number of spokes decoded and published",
			},
			[]string{"radar_id"},
		),

		SpokesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mayara",
				Subsystem: "spoke",
				Name:      "dropped_total",
				Help:      "Total number of spokes dropped by a lagging subscriber's buffer",
			},
			[]string{"radar_id"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mayara",
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Per-operation processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"component", "operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mayara",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by component and kind",
			},
			[]string{"component", "kind"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "mayara",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),

		ControlSetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mayara",
				Subsystem: "control",
				Name:      "sets_total",
				Help:      "Total number of control set requests by outcome",
			},
			[]string{"control", "outcome"},
		),
	}
}

// RecordRadarStatus updates a radar's status gauge.
func (c *Metrics) RecordRadarStatus(radarID, vendor string, status int) {
	c.RadarStatus.WithLabelValues(radarID, vendor).Set(float64(status))
}

// RecordBeaconReceived increments the received-beacon counter.
func (c *Metrics) RecordBeaconReceived(vendor, nic string) {
	c.BeaconsReceived.WithLabelValues(vendor, nic).Inc()
}

// RecordBeaconDropped increments the dropped-beacon counter.
func (c *Metrics) RecordBeaconDropped(vendor string) {
	c.BeaconsDropped.WithLabelValues(vendor).Inc()
}

// RecordReportProcessed increments the processed-report counter.
func (c *Metrics) RecordReportProcessed(radarID, vendor string) {
	c.ReportsProcessed.WithLabelValues(radarID, vendor).Inc()
}

// RecordSpokeProcessed increments the processed-spoke counter.
func (c *Metrics) RecordSpokeProcessed(radarID string) {
	c.SpokesProcessed.WithLabelValues(radarID).Inc()
}

// RecordSpokeDropped increments the dropped-spoke counter.
func (c *Metrics) RecordSpokeDropped(radarID string) {
	c.SpokesDropped.WithLabelValues(radarID).Inc()
}

// RecordProcessingDuration records an operation's processing time.
func (c *Metrics) RecordProcessingDuration(component, operation string, duration time.Duration) {
	c.ProcessingDuration.WithLabelValues(component, operation).Observe(duration.Seconds())
}

// RecordError increments the error counter.
func (c *Metrics) RecordError(component, kind string) {
	c.ErrorsTotal.WithLabelValues(component, kind).Inc()
}

// RecordHealthStatus updates a component's health gauge.
func (c *Metrics) RecordHealthStatus(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(component).Set(value)
}

// RecordControlSet increments the control-set outcome counter.
func (c *Metrics) RecordControlSet(control, outcome string) {
	c.ControlSetsTotal.WithLabelValues(control, outcome).Inc()
}
