package handlers

import (
	"time"

	"clip-studio/internal/library"

	"github.com/gorilla/mux"
)

// Handlers serves the local clip API: health probes, version info, and
// read/manage access to the library.
type Handlers struct {
	store     *library.Store
	startTime time.Time
}

func New(store *library.Store) *Handlers {
	return &Handlers{
		store:     store,
		startTime: time.Now(),
	}
}

// RegisterRoutes attaches all API routes to the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET", "HEAD")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/api/version", h.GetVersion).Methods("GET")

	r.HandleFunc("/api/clips", h.ListClips).Methods("GET")
	r.HandleFunc("/api/clips/{id}", h.GetClip).Methods("GET")
	r.HandleFunc("/api/clips/{id}", h.RenameClip).Methods("PATCH")
	r.HandleFunc("/api/clips/{id}", h.DeleteClip).Methods("DELETE")
	r.HandleFunc("/api/clips/{id}/download", h.DownloadClip).Methods("GET")
}
