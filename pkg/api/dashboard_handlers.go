package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/clientops/pkg/aggregator"
	"github.com/platinummonkey/clientops/pkg/async"
	"github.com/platinummonkey/clientops/pkg/httputil"
	"github.com/platinummonkey/clientops/pkg/notify"
	"github.com/platinummonkey/clientops/pkg/observability"
)

// DefaultRefreshTimeout bounds an on-demand dashboard refresh
const DefaultRefreshTimeout = 2 * time.Minute

// Dashboards produces and serves the aggregated dashboard
type Dashboards interface {
	Latest(ctx context.Context) (aggregator.Dashboard, error)
	Run(ctx context.Context) (aggregator.Dashboard, error)
}

// DashboardHandlers serves the dashboard and the recent notices
type DashboardHandlers struct {
	dashboards Dashboards
	notices    *notify.Recorder
	logger     *observability.Logger
	timeout    time.Duration
}

// NewDashboardHandlers creates dashboard handlers. notices may be nil.
func NewDashboardHandlers(dashboards Dashboards, notices *notify.Recorder, logger *observability.Logger) *DashboardHandlers {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &DashboardHandlers{
		dashboards: dashboards,
		notices:    notices,
		logger:     logger,
		timeout:    DefaultRefreshTimeout,
	}
}

// RegisterRoutes registers dashboard routes
func (h *DashboardHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/dashboard", h.latest).Methods("GET")
	r.HandleFunc("/v1/dashboard/refresh", h.refresh).Methods("POST")
	r.HandleFunc("/v1/notices", h.listNotices).Methods("GET")
}

// latest handles GET /v1/dashboard
func (h *DashboardHandlers) latest(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboards.Latest(r.Context())
	if errors.Is(err, aggregator.ErrNoDashboard) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "dashboard not computed yet")
		return
	}
	if err != nil {
		httputil.WriteLifecycleError(w, err, nil)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, d)
}

// refresh handles POST /v1/dashboard/refresh. The run continues after the
// response is sent; its outcome shows up in the dashboard and the logs.
func (h *DashboardHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	async.SafeGo(context.WithoutCancel(r.Context()), h.logger, h.timeout, "dashboard refresh", func(ctx context.Context) error {
		_, err := h.dashboards.Run(ctx)
		if errors.Is(err, aggregator.ErrSuperseded) {
			return nil
		}
		return err
	})
	_ = httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

// listNotices handles GET /v1/notices
func (h *DashboardHandlers) listNotices(w http.ResponseWriter, r *http.Request) {
	out := []notify.Notice{}
	if h.notices != nil {
		out = h.notices.Notices()
	}
	_ = httputil.WriteJSON(w, http.StatusOK, out)
}
