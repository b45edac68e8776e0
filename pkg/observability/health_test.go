package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_NoDependencies(t *testing.T) {
	status := NewHealthChecker("1.2.3").Check(context.Background())

	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Empty(t, status.Dependencies)
}

func TestHealthChecker_Aggregation(t *testing.T) {
	down := func(context.Context) error { return errors.New("connection refused") }
	up := func(context.Context) error { return nil }
	slow := func(context.Context) error { return errors.Join(ErrDegraded, errors.New("pool exhausted")) }

	tests := []struct {
		name  string
		setup func(h *HealthChecker)
		want  string
	}{
		{"all up", func(h *HealthChecker) { h.AddCheck("platform", true, up); h.AddCheck("redis", false, up) }, StatusHealthy},
		{"optional down", func(h *HealthChecker) { h.AddCheck("platform", true, up); h.AddCheck("redis", false, down) }, StatusDegraded},
		{"critical degraded", func(h *HealthChecker) { h.AddCheck("replica", true, slow) }, StatusDegraded},
		{"critical down", func(h *HealthChecker) { h.AddCheck("platform", true, down); h.AddCheck("redis", false, slow) }, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker("")
			tt.setup(h)
			assert.Equal(t, tt.want, h.Check(context.Background()).Status)
		})
	}
}

func TestSQLCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	assert.NoError(t, SQLCheck(db)(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("replica down"))
	assert.EqualError(t, SQLCheck(db)(context.Background()), "replica down")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	assert.NoError(t, RedisCheck(client)(context.Background()))

	mr.Close()
	assert.Error(t, RedisCheck(client)(context.Background()))
}

func TestReadinessAndLiveness(t *testing.T) {
	h := NewHealthChecker("v1")
	h.AddCheck("platform", true, func(context.Context) error { return errors.New("timeout") })
	mux := http.NewServeMux()
	RegisterHealthRoutes(mux, h)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, StatusUnhealthy, status.Dependencies["platform"].Status)
	assert.Equal(t, "timeout", status.Dependencies["platform"].Message)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
