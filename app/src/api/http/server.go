package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"telemetry-service/app/src/domain"
	"telemetry-service/app/src/infra"
)

// Server exposes the HTTP transport for the telemetry application.
type Server struct {
	handler http.Handler
}

// NewServer constructs an HTTP server that forwards requests to the application service.
// defaultFailFast selects the fan-out mode used when a request does not specify one.
func NewServer(service domain.FetchService, defaultFailFast bool, logger *infra.Logger) *Server {
	router := chi.NewRouter()
	handler := &handler{service: service, defaultFailFast: defaultFailFast, logger: logger}

	router.Use(infra.HTTPMiddleware(func(r *http.Request) string {
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				return pattern
			}
		}
		return r.URL.Path
	}))

	registerRoutes(router, handler)

	return &Server{handler: router}
}

// Router returns the configured HTTP handler for reuse in tests or external HTTP servers.
func (s *Server) Router() http.Handler {
	return s.handler
}

// ServeHTTP allows Server to satisfy the http.Handler interface directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
