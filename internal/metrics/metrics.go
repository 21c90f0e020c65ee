package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Capture metrics
var (
	CaptureSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_studio_capture_sessions_total",
			Help: "Total number of capture sessions by outcome",
		},
		[]string{"status"}, // "started", "completed", "error", "empty"
	)

	CaptureRecordingBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clip_studio_capture_recording_bytes",
			Help:    "Size of assembled recordings in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 10),
		},
	)

	CompositorFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clip_studio_compositor_frames_total",
			Help: "Total number of frames drawn onto the compositor surface",
		},
	)
)

// Render metrics
var (
	RenderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_studio_render_jobs_total",
			Help: "Total number of render jobs",
		},
		[]string{"renderer", "status"},
	)

	RenderJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clip_studio_render_job_duration_seconds",
			Help:    "Render job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"renderer"},
	)

	RenderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_studio_render_jobs_in_progress",
			Help: "Number of render jobs currently in progress",
		},
	)

	RenderOutputBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clip_studio_render_output_bytes",
			Help:    "Size of rendered outputs in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 10),
		},
		[]string{"format"},
	)
)

// Library database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_studio_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clip_studio_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	LibraryClipsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_studio_library_clips_total",
			Help: "Number of clips stored in the library",
		},
	)

	LibraryBytesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_studio_library_bytes_total",
			Help: "Total bytes of clip data stored in the library",
		},
	)
)

// Upload metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_studio_uploads_total",
			Help: "Total number of clip upload attempts",
		},
		[]string{"status"},
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clip_studio_upload_bytes",
			Help:    "Size of uploaded clips in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 10),
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_studio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clip_studio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_studio_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Memory backpressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_studio_memory_usage_ratio",
			Help: "Current heap usage as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_studio_memory_paused",
			Help: "Whether memory-intensive processing is currently paused (1) or running (0)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clip_studio_memory_gc_pauses_total",
			Help: "Total number of times critical memory pressure forced a pause and GC",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clip_studio_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
