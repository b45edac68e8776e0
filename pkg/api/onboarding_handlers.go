package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/clientops/pkg/httputil"
	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/onboarding"
)

// OnboardingService is the onboarding tracker as used by the handlers
type OnboardingService interface {
	Monitor(ctx context.Context, f onboarding.Filter) (onboarding.Monitor, error)
	SendReminder(ctx context.Context, organizationID string) error
	ScheduleCall(ctx context.Context, organizationID string) error
	BulkReminder(ctx context.Context, f onboarding.Filter, ids []string) (*lifecycle.BatchResult[string], error)
	BulkAssign(ctx context.Context, f onboarding.Filter, ids []string, assigneeID string) (*lifecycle.BatchResult[string], error)
	Export(ctx context.Context, f onboarding.Filter, ids []string) (*lifecycle.BatchResult[string], onboarding.ExportReceipt, error)
}

// OnboardingHandlers serves the onboarding monitor and its actions
type OnboardingHandlers struct {
	service OnboardingService
}

// NewOnboardingHandlers creates onboarding handlers
func NewOnboardingHandlers(service OnboardingService) *OnboardingHandlers {
	return &OnboardingHandlers{service: service}
}

// RegisterRoutes registers onboarding routes
func (h *OnboardingHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/onboarding", h.monitor).Methods("GET")
	r.HandleFunc("/v1/onboarding/bulk/reminders", h.bulkReminder).Methods("POST")
	r.HandleFunc("/v1/onboarding/bulk/assign", h.bulkAssign).Methods("POST")
	r.HandleFunc("/v1/onboarding/bulk/export", h.export).Methods("POST")
	r.HandleFunc("/v1/onboarding/{org}/reminders", h.reminder).Methods("POST")
	r.HandleFunc("/v1/onboarding/{org}/calls", h.call).Methods("POST")
}

// bulkRequest is a selection made under a filter. The filter is resent so
// the server can drop IDs that are no longer in view.
type bulkRequest struct {
	Phase      string   `json:"phase"`
	Stalled    string   `json:"stalled"`
	IDs        []string `json:"ids"`
	AssigneeID string   `json:"assignee_id,omitempty"`
}

type exportResponse struct {
	*lifecycle.BatchResult[string]
	Receipt onboarding.ExportReceipt `json:"receipt"`
}

// monitor handles GET /v1/onboarding?phase=&stalled=
func (h *OnboardingHandlers) monitor(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := onboarding.ParseFilter(q.Get("phase"), q.Get("stalled"))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	m, err := h.service.Monitor(r.Context(), f)
	if err != nil {
		httputil.WriteLifecycleError(w, err, nil)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, m)
}

// reminder handles POST /v1/onboarding/{org}/reminders
func (h *OnboardingHandlers) reminder(w http.ResponseWriter, r *http.Request) {
	h.single(w, r, h.service.SendReminder)
}

// call handles POST /v1/onboarding/{org}/calls
func (h *OnboardingHandlers) call(w http.ResponseWriter, r *http.Request) {
	h.single(w, r, h.service.ScheduleCall)
}

func (h *OnboardingHandlers) single(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) error) {
	if err := fn(r.Context(), httputil.PathString(r, "org")); err != nil {
		httputil.WriteLifecycleError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *OnboardingHandlers) parseBulk(w http.ResponseWriter, r *http.Request) (bulkRequest, onboarding.Filter, bool) {
	var req bulkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return req, onboarding.Filter{}, false
	}
	if len(req.IDs) == 0 {
		httputil.WriteBadRequest(w, "ids are required")
		return req, onboarding.Filter{}, false
	}
	f, err := onboarding.ParseFilter(req.Phase, req.Stalled)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return req, onboarding.Filter{}, false
	}
	return req, f, true
}

// bulkReminder handles POST /v1/onboarding/bulk/reminders
func (h *OnboardingHandlers) bulkReminder(w http.ResponseWriter, r *http.Request) {
	req, f, ok := h.parseBulk(w, r)
	if !ok {
		return
	}
	result, err := h.service.BulkReminder(r.Context(), f, req.IDs)
	writeBatch(w, result, err)
}

// bulkAssign handles POST /v1/onboarding/bulk/assign
func (h *OnboardingHandlers) bulkAssign(w http.ResponseWriter, r *http.Request) {
	req, f, ok := h.parseBulk(w, r)
	if !ok {
		return
	}
	if req.AssigneeID == "" {
		httputil.WriteBadRequest(w, "assignee_id is required")
		return
	}
	result, err := h.service.BulkAssign(r.Context(), f, req.IDs, req.AssigneeID)
	writeBatch(w, result, err)
}

// export handles POST /v1/onboarding/bulk/export
func (h *OnboardingHandlers) export(w http.ResponseWriter, r *http.Request) {
	req, f, ok := h.parseBulk(w, r)
	if !ok {
		return
	}
	result, receipt, err := h.service.Export(r.Context(), f, req.IDs)
	if err != nil {
		httputil.WriteLifecycleError(w, err, nil)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, exportResponse{BatchResult: result, Receipt: receipt})
}

// writeBatch reports a batch with 200 whatever the per-item outcome; the
// body lists which items failed
func writeBatch(w http.ResponseWriter, result *lifecycle.BatchResult[string], err error) {
	if err != nil {
		httputil.WriteLifecycleError(w, err, nil)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, result)
}
