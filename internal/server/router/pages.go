package router

import (
	"net/http"

	"github.com/oakbridge/oakbridge/internal/server/handlers"
)

// PagesRouter handles page routes. Must be registered last: it includes
// the root handler.
type PagesRouter struct {
	handlers *handlers.PagesHandlers
}

// RegisterRoutes registers all page routes
func (r *PagesRouter) RegisterRoutes(mux *http.ServeMux, server interface{}) {
	r.handlers = handlers.NewPagesHandlers()
	mux.HandleFunc("/", r.handlers.HandleRoot)
}

// GetPathPrefix returns the path prefix for this router
func (r *PagesRouter) GetPathPrefix() string {
	return "/"
}
