package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetrics_MirrorToOTel(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	o, err := NewOTelMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m := NewMetrics(prometheus.NewRegistry())
	m.MirrorTo(o)

	m.RecordTransition("deal", "WON", OutcomeApplied)
	m.RecordTransition("deal", "WON", OutcomeApplied)
	m.ObserveAction("deal", "WON", time.Now())
	m.RecordBatch("bulkReminder", 2, 1)
	m.RecordPlatformRequest("GET /deals", 200, time.Now())

	data := collect(t, reader)

	transitions, ok := data["clientops.transitions"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, transitions.DataPoints, 1)
	assert.Equal(t, int64(2), transitions.DataPoints[0].Value)

	batch, ok := data["clientops.batch.items"].(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range batch.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)

	assert.Contains(t, data, "clientops.action.duration")
	assert.Contains(t, data, "clientops.platform.requests")
	assert.Contains(t, data, "clientops.platform.duration")
}

func TestNewOTelMetrics_GlobalMeter(t *testing.T) {
	o, err := NewOTelMetrics(nil)
	require.NoError(t, err)
	assert.NotPanics(t, func() { o.recordTransition("deal", "LOST", OutcomeApplied) })
}
