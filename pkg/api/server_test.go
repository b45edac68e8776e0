package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/clientops/pkg/httputil"
	"github.com/platinummonkey/clientops/pkg/observability"
)

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestServer_UnknownRoute(t *testing.T) {
	s := NewServer(nil, nil)

	w := do(t, s, http.MethodGet, "/v1/nothing", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, w.Header().Get(httputil.HeaderRequestID))
	assert.Equal(t, "route not found", decode[httputil.ErrorResponse](t, w).Error)
}

func TestServer_RecordsRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	s := NewServer(nil, metrics)
	s.RegisterRoutes(NewHealthHandlers(&fakeHealth{}))

	w := do(t, s, http.MethodGet, "/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/v1/health", "200")))
}

func TestServer_PropagatesActor(t *testing.T) {
	deals := &fakeDeals{}
	s := NewServer(nil, nil)
	s.RegisterRoutes(NewDealHandlers(deals))

	r := httptest.NewRequest(http.MethodDelete, "/v1/deals/d1", nil)
	r.Header.Set(httputil.HeaderActor, "sam")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "sam", deals.actor)
}

func TestServer_UseSeesActor(t *testing.T) {
	s := NewServer(nil, nil)
	s.RegisterRoutes(NewDealHandlers(&fakeDeals{}))

	var seen string
	s.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = observability.GetActor(r.Context())
			next.ServeHTTP(w, r)
		})
	})

	r := httptest.NewRequest(http.MethodDelete, "/v1/deals/d1", nil)
	r.Header.Set(httputil.HeaderActor, "kim")
	s.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "kim", seen)
}
