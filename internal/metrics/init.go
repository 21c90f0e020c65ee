package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Capture session outcomes ---
	for _, status := range []string{"started", "completed", "error", "empty"} {
		CaptureSessionsTotal.WithLabelValues(status)
	}

	// --- Render jobs (per renderer × status) ---
	renderers := []string{"filtergraph", "recapture", "fastpath"}
	for _, r := range renderers {
		RenderJobsTotal.WithLabelValues(r, "success")
		RenderJobsTotal.WithLabelValues(r, "error")
		RenderJobDuration.WithLabelValues(r)
	}
	for _, f := range []string{"webm", "mp4", "gif"} {
		RenderOutputBytes.WithLabelValues(f)
	}

	// --- DB query operations ---
	for _, op := range []string{"initialize_schema", "save_clip", "get_clip",
		"delete_clip", "list_clips", "rename_clip", "stats", "vacuum"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	// --- Uploads ---
	for _, status := range []string{"success", "error", "unauthorized"} {
		UploadsTotal.WithLabelValues(status)
	}
}
