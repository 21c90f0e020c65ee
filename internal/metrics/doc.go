// Package metrics provides Prometheus instrumentation for clip-studio.
//
// This package defines and exposes various metrics that can be scraped by
// Prometheus to monitor the health, performance, and behavior of the
// application. All metrics are prefixed with "clip_studio_" to avoid naming
// collisions with other applications.
//
// # Metric Categories
//
// ## Capture Metrics
//
// Track recording session activity:
//   - CaptureSessionsTotal: Counter of sessions by outcome (started/completed/error/empty)
//   - CaptureRecordingBytes: Histogram of assembled recording sizes
//   - CompositorFramesTotal: Counter of frames drawn by the compositor surface
//
// ## Render Metrics
//
// Monitor export and transcode jobs:
//   - RenderJobsTotal: Counter by renderer and status
//   - RenderJobDuration: Histogram of job duration by renderer
//   - RenderJobsInProgress: Gauge of active jobs
//   - RenderOutputBytes: Histogram of output sizes by format
//
// ## Library Metrics
//
// Monitor the clip library and its database:
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//   - LibraryClipsTotal: Gauge of stored clip count
//   - LibraryBytesTotal: Gauge of stored clip bytes
//
// ## Upload Metrics
//
// Track clip uploads to the sharing service:
//   - UploadsTotal: Counter by status
//   - UploadBytes: Histogram of uploaded clip sizes
//
// ## HTTP Metrics
//
// Track the status server:
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// # Usage
//
// Metrics are automatically registered with the default Prometheus registry
// using promauto. To expose them, mount the promhttp.Handler() on your
// metrics endpoint:
//
//	import "github.com/prometheus/client_golang/prometheus/promhttp"
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// # Collector
//
// The package provides a [Collector] type that periodically gathers
// statistics from a [StatsProvider] and updates the corresponding gauges:
//
//	collector := metrics.NewCollector(store, 1*time.Minute)
//	collector.Start()
//	defer collector.Stop()
package metrics
