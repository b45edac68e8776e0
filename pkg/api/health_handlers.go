package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/clientops/pkg/health"
	"github.com/platinummonkey/clientops/pkg/httputil"
)

// HealthService scores the client portfolio
type HealthService interface {
	Portfolio(ctx context.Context) (health.Portfolio, error)
}

// HealthHandlers serves client health scores
type HealthHandlers struct {
	service HealthService
}

// NewHealthHandlers creates health handlers
func NewHealthHandlers(service HealthService) *HealthHandlers {
	return &HealthHandlers{service: service}
}

// RegisterRoutes registers health routes
func (h *HealthHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/health", h.portfolio).Methods("GET")
}

// portfolio handles GET /v1/health?at_risk=true
func (h *HealthHandlers) portfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Portfolio(r.Context())
	if err != nil {
		httputil.WriteLifecycleError(w, err, nil)
		return
	}
	if r.URL.Query().Get("at_risk") == "true" {
		p.Clients = p.AtRisk
	}
	_ = httputil.WriteJSON(w, http.StatusOK, p)
}
