package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/clientops/pkg/dunning"
	"github.com/platinummonkey/clientops/pkg/httputil"
)

// DunningService is the dunning engine as used by the handlers
type DunningService interface {
	Views(ctx context.Context, status dunning.Status) ([]dunning.View, error)
	View(ctx context.Context, id string) (dunning.View, error)
	Statistics(ctx context.Context) (dunning.Statistics, error)
	Act(ctx context.Context, id string, action dunning.Action, version string) (dunning.Result, error)
}

// DunningHandlers serves dunning sequences and manual actions
type DunningHandlers struct {
	service DunningService
}

// NewDunningHandlers creates dunning handlers
func NewDunningHandlers(service DunningService) *DunningHandlers {
	return &DunningHandlers{service: service}
}

// RegisterRoutes registers dunning routes
func (h *DunningHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/dunning", h.list).Methods("GET")
	r.HandleFunc("/v1/dunning/statistics", h.statistics).Methods("GET")
	r.HandleFunc("/v1/dunning/{id}", h.get).Methods("GET")
	r.HandleFunc("/v1/dunning/{id}/actions/{action}", h.act).Methods("POST")
}

// list handles GET /v1/dunning?status=
func (h *DunningHandlers) list(w http.ResponseWriter, r *http.Request) {
	status := dunning.StatusAll
	if raw := r.URL.Query().Get("status"); raw != "" && raw != string(dunning.StatusAll) {
		parsed, err := dunning.ParseStatus(raw)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		status = parsed
	}
	views, err := h.service.Views(r.Context(), status)
	if err != nil {
		httputil.WriteLifecycleError(w, err, nil)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, views)
}

// statistics handles GET /v1/dunning/statistics
func (h *DunningHandlers) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		httputil.WriteLifecycleError(w, err, nil)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, stats)
}

// get handles GET /v1/dunning/{id}
func (h *DunningHandlers) get(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.View(r.Context(), httputil.PathString(r, "id"))
	if err != nil {
		httputil.WriteLifecycleError(w, err, nil)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, v)
}

// act handles POST /v1/dunning/{id}/actions/{action}
func (h *DunningHandlers) act(w http.ResponseWriter, r *http.Request) {
	var req versionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	action, err := dunning.ParseAction(httputil.PathString(r, "action"))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	result, err := h.service.Act(r.Context(), httputil.PathString(r, "id"), action, req.Version)
	if err != nil {
		var current interface{}
		if result.Sequence.ID != "" {
			current = result.Sequence
		}
		httputil.WriteLifecycleError(w, err, current)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, result)
}
