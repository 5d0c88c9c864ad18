package handlers

import (
	"net/http"
	"os"
	"time"
)

// APIHandlers contains handlers for all /api/* routes
type APIHandlers struct {
	serverService ServerService
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(serverSvc ServerService) *APIHandlers {
	return &APIHandlers{serverService: serverSvc}
}

// Health and status endpoints
func (h *APIHandlers) HandleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"oakbridge-server"}`))
}

func (h *APIHandlers) HandleStatus(w http.ResponseWriter, req *http.Request) {
	if h.serverService == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"running","service":"oakbridge-server"}`))
		return
	}

	state := h.serverService.ConnectionState()
	format := h.serverService.StreamFormat()

	status := map[string]interface{}{
		"running":     h.serverService.IsRunning(),
		"port":        h.serverService.GetPort(),
		"uptime":      h.serverService.GetUptime().String(),
		"state":       state.State.String(),
		"state_since": state.Since.Format(time.RFC3339),
		"reason":      state.Reason,
		"format":      format.String(),
		"version":     h.serverService.GetVersion(),
		"build_id":    h.serverService.GetBuildID(),
	}
	if state.Descriptor != nil {
		status["device"] = map[string]interface{}{
			"id":       state.Descriptor.Device.ID,
			"name":     state.Descriptor.Device.Name,
			"speed":    state.Descriptor.Speed.String(),
			"encoding": state.Descriptor.Encoding.String(),
			"epoch":    state.Descriptor.Epoch,
		}
	}

	RespondJSON(w, http.StatusOK, status)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, req *http.Request) {
	RespondJSON(w, http.StatusOK, h.serverService.PipelineStats())
}

func (h *APIHandlers) HandleDevices(w http.ResponseWriter, req *http.Request) {
	devices, scannedAt := h.serverService.Devices()

	list := make([]map[string]interface{}, 0, len(devices))
	for _, d := range devices {
		list = append(list, map[string]interface{}{
			"id":    d.ID,
			"name":  d.Name,
			"speed": d.Speed.String(),
		})
	}

	out := map[string]interface{}{
		"devices": list,
		"count":   len(list),
	}
	if !scannedAt.IsZero() {
		out["scanned_at"] = scannedAt.Format(time.RFC3339)
	}
	RespondJSON(w, http.StatusOK, out)
}

// Server management endpoints
func (h *APIHandlers) HandleServerShutdown(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"message": "Server shutting down",
	})

	// Shutdown after response
	go func() {
		time.Sleep(100 * time.Millisecond)
		h.serverService.Stop()
		os.Exit(0)
	}()
}

func (h *APIHandlers) HandleServerInfo(w http.ResponseWriter, req *http.Request) {
	info := map[string]interface{}{
		"version":  h.serverService.GetVersion(),
		"build_id": h.serverService.GetBuildID(),
		"port":     h.serverService.GetPort(),
		"uptime":   h.serverService.GetUptime().String(),
		"services": []string{
			"frame-relay",
			"device-supervisor",
		},
	}

	RespondJSON(w, http.StatusOK, info)
}
