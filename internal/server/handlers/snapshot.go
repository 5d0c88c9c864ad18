package handlers

import (
	"fmt"
	"net/http"
)

// SnapshotHandlers serve still captures of the presented frame.
type SnapshotHandlers struct {
	serverService ServerService
}

// NewSnapshotHandlers creates a new snapshot handlers instance
func NewSnapshotHandlers(serverSvc ServerService) *SnapshotHandlers {
	return &SnapshotHandlers{serverService: serverSvc}
}

// HandleSnapshot returns the currently presented frame as JPEG. Before any
// device has ever streamed this is the placeholder, flagged in headers so
// callers can tell it apart from camera output.
func (h *SnapshotHandlers) HandleSnapshot(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, meta, err := h.serverService.SnapshotJPEG()
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.Header().Set("X-Snapshot-Placeholder", fmt.Sprintf("%t", meta.Placeholder))
	if !meta.Placeholder {
		w.Header().Set("X-Snapshot-Seq", fmt.Sprintf("%d", meta.Seq))
		w.Header().Set("X-Snapshot-Epoch", fmt.Sprintf("%d", meta.Epoch))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
