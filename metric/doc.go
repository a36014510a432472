// Package metric provides Prometheus-based metrics collection and an
// HTTP server exposing them for mayara.
//
// MetricsRegistry owns a *prometheus.Registry plus the always-on core
// metrics (Metrics), and lets components register additional counters,
// gauges and histograms under a component-scoped key so names never
// collide:
//
//	registry := metric.NewMetricsRegistry()
//	core := registry.CoreMetrics()
//	core.RecordRadarStatus(string(info.ID), string(info.Vendor), 3)
//
//	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "spoke_batches_total"})
//	_ = registry.RegisterCounter("spoke-pipeline", "spoke_batches_total", counter)
//
// Server serves the registry's metrics at /metrics in OpenMetrics
// format, plus a plain-text /health check:
//
//	server := metric.NewServer(9090, "/metrics", registry)
//	go server.Start()
//
// Every core metric lives under the "mayara" namespace — radar status,
// discovery beacon counts, report/spoke throughput, control-set
// outcomes and generic per-component error/duration counters. The
// metrics/health port is plain HTTP: it is bound to the operator side
// of the deployment, never the radar-facing network, so TLS belongs to
// whatever reverse proxy fronts it.
package metric
