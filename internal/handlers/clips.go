package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"clip-studio/internal/library"
	"clip-studio/internal/logging"
	"clip-studio/internal/streaming"

	"github.com/gorilla/mux"
)

// clipResponse is the wire shape of a library clip.
type clipResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MimeType  string `json:"mimeType"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"createdAt"`
}

func toClipResponse(c *library.Clip) clipResponse {
	return clipResponse{
		ID:        c.ID,
		Name:      c.Name,
		MimeType:  c.MimeType,
		Size:      c.Size,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ListClips returns all library clips, newest first.
func (h *Handlers) ListClips(w http.ResponseWriter, r *http.Request) {
	clips, err := h.store.List(r.Context())
	if err != nil {
		logging.Error("failed to list clips: %v", err)
		writeJSONError(w, "failed to list clips", http.StatusInternalServerError)
		return
	}

	response := make([]clipResponse, 0, len(clips))
	for i := range clips {
		response = append(response, toClipResponse(&clips[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// GetClip returns one clip's metadata.
func (h *Handlers) GetClip(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	clip, f, err := h.store.OpenBlob(r.Context(), id)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeJSONError(w, "clip not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to load clip %s: %v", id, err)
		writeJSONError(w, "failed to load clip", http.StatusInternalServerError)
		return
	}
	f.Close()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, toClipResponse(clip))
}

// DownloadClip streams the clip blob with timeout protection against
// stalled clients.
func (h *Handlers) DownloadClip(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	clip, f, err := h.store.OpenBlob(r.Context(), id)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeJSONError(w, "clip not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to open clip %s: %v", id, err)
		writeJSONError(w, "failed to open clip", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", clip.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(clip.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", clip.Name))

	config := streaming.DownloadConfig(clip.Size)
	if err := streaming.StreamWithTimeout(r.Context(), w, f, config); err != nil {
		if errors.Is(err, streaming.ErrClientGone) {
			logging.Debug("client disconnected during download of clip %s", id)
			return
		}
		logging.Warn("download of clip %s failed: %v", id, err)
	}
}

// RenameClip updates a clip's display name.
func (h *Handlers) RenameClip(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		writeJSONError(w, "name must not be empty", http.StatusBadRequest)
		return
	}

	if err := h.store.Rename(r.Context(), id, body.Name); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeJSONError(w, "clip not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to rename clip %s: %v", id, err)
		writeJSONError(w, "failed to rename clip", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "renamed")
}

// DeleteClip removes a clip and its blob.
func (h *Handlers) DeleteClip(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeJSONError(w, "clip not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to delete clip %s: %v", id, err)
		writeJSONError(w, "failed to delete clip", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "deleted")
}
