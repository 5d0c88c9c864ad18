package router

import (
	"net/http"

	"github.com/oakbridge/oakbridge/internal/server/handlers"
)

// APIRouter handles all /api/* routes
type APIRouter struct {
	handlers *handlers.APIHandlers
}

// RegisterRoutes registers all API routes
func (r *APIRouter) RegisterRoutes(mux *http.ServeMux, server interface{}) {
	// Cast server to ServerService
	var serverService handlers.ServerService
	if srv, ok := server.(handlers.ServerService); ok {
		serverService = srv
	}

	r.handlers = handlers.NewAPIHandlers(serverService)
	controlHandlers := handlers.NewControlHandlers(serverService)
	snapshotHandlers := handlers.NewSnapshotHandlers(serverService)

	// Health and status endpoints
	mux.HandleFunc("/api/health", r.handlers.HandleHealth)
	mux.HandleFunc("/api/status", r.handlers.HandleStatus)
	mux.HandleFunc("/api/stats", r.handlers.HandleStats)

	// Device endpoints
	mux.HandleFunc("/api/devices", r.handlers.HandleDevices)
	mux.HandleFunc("/api/snapshot", snapshotHandlers.HandleSnapshot)

	// Control surface endpoints
	mux.HandleFunc("/api/control/focus", controlHandlers.HandleFocus)
	mux.HandleFunc("/api/control/exposure", controlHandlers.HandleExposure)
	mux.HandleFunc("/api/control/white-balance", controlHandlers.HandleWhiteBalance)
	mux.HandleFunc("/api/control/autofocus", controlHandlers.HandleAutofocusTrigger)
	mux.HandleFunc("/api/control/auto-focus", controlHandlers.HandleAutoFocus)
	mux.HandleFunc("/api/control/auto-exposure", controlHandlers.HandleAutoExposure)
	mux.HandleFunc("/api/control/link-speed", controlHandlers.HandleLinkSpeed)

	// Server management endpoints
	mux.HandleFunc("/api/server/shutdown", r.handlers.HandleServerShutdown)
	mux.HandleFunc("/api/server/info", r.handlers.HandleServerInfo)
}

// GetPathPrefix returns the path prefix for this router
func (r *APIRouter) GetPathPrefix() string {
	return "/api"
}
