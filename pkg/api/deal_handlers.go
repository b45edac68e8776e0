package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/clientops/pkg/deals"
	"github.com/platinummonkey/clientops/pkg/httputil"
)

// DealService is the deal pipeline as used by the handlers
type DealService interface {
	Overview(ctx context.Context) (deals.Overview, error)
	Get(ctx context.Context, id string) (deals.Deal, error)
	Pipeline(ctx context.Context) (deals.PipelineMetrics, error)
	Act(ctx context.Context, id string, action deals.Action, version string) (deals.Deal, error)
	Drop(ctx context.Context, id string, column deals.Stage, version string) (deals.Deal, error)
	Transition(ctx context.Context, req deals.TransitionRequest) (deals.Deal, error)
	Delete(ctx context.Context, id string) error
}

// DealHandlers serves the deal board and pipeline actions
type DealHandlers struct {
	service DealService
}

// NewDealHandlers creates deal handlers
func NewDealHandlers(service DealService) *DealHandlers {
	return &DealHandlers{service: service}
}

// RegisterRoutes registers deal routes
func (h *DealHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/deals", h.board).Methods("GET")
	r.HandleFunc("/v1/deals/pipeline", h.pipeline).Methods("GET")
	r.HandleFunc("/v1/deals/{id}", h.get).Methods("GET")
	r.HandleFunc("/v1/deals/{id}", h.delete).Methods("DELETE")
	r.HandleFunc("/v1/deals/{id}/actions/{action}", h.act).Methods("POST")
	r.HandleFunc("/v1/deals/{id}/transition", h.transition).Methods("POST")
	r.HandleFunc("/v1/deals/{id}/drop", h.drop).Methods("POST")
}

// DealDetail is one deal with the actions legal for it
type DealDetail struct {
	deals.Deal
	Actions []deals.Action `json:"actions"`
}

func detail(d deals.Deal) DealDetail {
	actions := deals.AvailableActions(d)
	if actions == nil {
		actions = []deals.Action{}
	}
	return DealDetail{Deal: d, Actions: actions}
}

// board handles GET /v1/deals
func (h *DealHandlers) board(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		httputil.WriteLifecycleError(w, err, nil)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, overview)
}

// pipeline handles GET /v1/deals/pipeline
func (h *DealHandlers) pipeline(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Pipeline(r.Context())
	if err != nil {
		httputil.WriteLifecycleError(w, err, nil)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, m)
}

// get handles GET /v1/deals/{id}
func (h *DealHandlers) get(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Get(r.Context(), httputil.PathString(r, "id"))
	if err != nil {
		httputil.WriteLifecycleError(w, err, nil)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, detail(d))
}

type versionRequest struct {
	Version string `json:"version"`
}

// act handles POST /v1/deals/{id}/actions/{action}
func (h *DealHandlers) act(w http.ResponseWriter, r *http.Request) {
	var req versionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	action := deals.Action(httputil.PathString(r, "action"))
	d, err := h.service.Act(r.Context(), httputil.PathString(r, "id"), action, req.Version)
	h.reply(w, d, err)
}

type transitionRequest struct {
	Target  string `json:"target"`
	Version string `json:"version"`
}

// transition handles POST /v1/deals/{id}/transition
func (h *DealHandlers) transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	target, err := deals.ParseStage(req.Target)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	d, err := h.service.Transition(r.Context(), deals.TransitionRequest{
		DealID:  httputil.PathString(r, "id"),
		Target:  target,
		Version: req.Version,
	})
	h.reply(w, d, err)
}

type dropRequest struct {
	Column  string `json:"column"`
	Version string `json:"version"`
}

// drop handles POST /v1/deals/{id}/drop
func (h *DealHandlers) drop(w http.ResponseWriter, r *http.Request) {
	var req dropRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	column, err := deals.ParseStage(req.Column)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	d, err := h.service.Drop(r.Context(), httputil.PathString(r, "id"), column, req.Version)
	h.reply(w, d, err)
}

// delete handles DELETE /v1/deals/{id}
func (h *DealHandlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), httputil.PathString(r, "id")); err != nil {
		httputil.WriteLifecycleError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DealHandlers) reply(w http.ResponseWriter, d deals.Deal, err error) {
	if err != nil {
		var current interface{}
		if d.ID != "" {
			current = detail(d)
		}
		httputil.WriteLifecycleError(w, err, current)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, detail(d))
}
