package router

import (
	"net/http"

	"github.com/oakbridge/oakbridge/internal/server/handlers"
)

// StreamRouter handles the websocket status feed
type StreamRouter struct {
	handlers *handlers.StreamHandlers
}

// RegisterRoutes registers the feed route
func (r *StreamRouter) RegisterRoutes(mux *http.ServeMux, server interface{}) {
	var serverService handlers.ServerService
	if srv, ok := server.(handlers.ServerService); ok {
		serverService = srv
	}

	r.handlers = handlers.NewStreamHandlers(serverService)
	mux.HandleFunc("/ws", r.handlers.HandleFeed)
}

// GetPathPrefix returns the path prefix for this router
func (r *StreamRouter) GetPathPrefix() string {
	return "/ws"
}
