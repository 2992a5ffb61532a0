// Package metric provides Prometheus-based metrics collection and an HTTP
// server for pipeline monitoring.
//
// The package offers a centralized registry managing both core pipeline
// metrics (runs, consumed events, classification counts, sink outcomes) and
// metrics registered by individual sinks. An HTTP server exposes everything
// in Prometheus format.
//
// # Basic Usage
//
// Setting up metrics collection and the HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("metrics server error: %v", err)
//	    }
//	}()
//	defer server.Stop()
//
//	core := registry.CoreMetrics()
//	core.RecordRun("ok", elapsed)
//	core.RecordBatch(len(batch.Events))
//	core.RecordClassified("Error")
//	core.RecordSinkRecord("elastic", metric.OutcomeForwarded)
//
// All core metrics use the "provreport" namespace. The record helpers are
// nil-safe so the pipeline can run without a registry in tests.
//
// # Sink Metrics
//
// Sinks register their own collectors through the MetricsRegistrar
// interface, keyed by owner name so they can be unregistered on shutdown:
//
//	counter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Name: "email_messages_sent_total",
//	    Help: "Total email notifications sent",
//	})
//	err := registry.Register("email-sink", "email_messages_sent_total", counter)
//
// # Endpoints
//
// The server exposes three endpoints:
//
//   - GET / - HTML page with links to metrics and health endpoints
//   - GET /metrics - Prometheus-formatted metrics (path configurable)
//   - GET /health - plain health check
package metric
