package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/clientops/pkg/httputil"
	"github.com/platinummonkey/clientops/pkg/observability"
)

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger
}

// NewServer creates an API server with the request middleware installed.
// Handler groups are added with RegisterRoutes.
func NewServer(logger *observability.Logger, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = observability.NopLogger()
	}
	s := &Server{
		router: mux.NewRouter(),
		logger: logger,
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "route not found")
	})
	if metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(metrics))
	}

	s.handler = httputil.Chain(
		httputil.RecoveryMiddleware(logger),
		httputil.RequestContextMiddleware,
		httputil.LoggingMiddleware(logger),
	)(s.router)
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Use installs route-level middleware; it runs after the request context
// is populated
func (s *Server) Use(mw ...func(http.Handler) http.Handler) {
	for _, m := range mw {
		s.router.Use(m)
	}
}

// Router exposes the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrars ...RouteRegistrar) {
	for _, r := range registrars {
		r.RegisterRoutes(s.router)
	}
}
