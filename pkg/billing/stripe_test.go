package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/observability"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*StripeGateway, *observability.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	g, err := NewStripeGateway(StripeConfig{APIKey: "sk_test_123", URL: srv.URL}, nil, metrics)
	require.NoError(t, err)
	return g, metrics
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestNewStripeGateway_RequiresKey(t *testing.T) {
	_, err := NewStripeGateway(StripeConfig{}, nil, nil)
	assert.Error(t, err)
}

func TestStripeGateway_RetryPayment_Paid(t *testing.T) {
	g, metrics := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/invoices/in_123/pay", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"id":"in_123","object":"invoice","paid":true,"status":"paid"}`)
	})

	paid, err := g.RetryPayment(context.Background(), "in_123")
	require.NoError(t, err)
	assert.True(t, paid)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PlatformRequestsTotal.WithLabelValues("stripe.invoice_pay", "200")))
}

func TestStripeGateway_RetryPayment_Declined(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusPaymentRequired,
			`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`)
	})

	paid, err := g.RetryPayment(context.Background(), "in_123")
	require.NoError(t, err)
	assert.False(t, paid)
}

func TestStripeGateway_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, `{"error":{"type":"invalid_request_error","message":"No such invoice"}}`, lifecycle.ErrNotFound},
		{"server error", http.StatusInternalServerError, `{"error":{"type":"api_error","message":"boom"}}`, lifecycle.ErrUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"type":"invalid_request_error","message":"slow down"}}`, lifecycle.ErrUnavailable},
		{"invalid", http.StatusBadRequest, `{"error":{"type":"invalid_request_error","message":"Invoice is already paid"}}`, lifecycle.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := g.RetryPayment(context.Background(), "in_123")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStripeGateway_PaymentLink(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/v1/invoices/in_1":
			writeJSON(w, http.StatusOK, `{"id":"in_1","object":"invoice","hosted_invoice_url":"https://pay.example.com/in_1"}`)
		default:
			writeJSON(w, http.StatusOK, `{"id":"in_2","object":"invoice"}`)
		}
	})

	link, err := g.PaymentLink(context.Background(), "in_1")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/in_1", link)

	_, err = g.PaymentLink(context.Background(), "in_2")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestStripeGateway_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g, err := NewStripeGateway(StripeConfig{APIKey: "sk_test_123", URL: url}, nil, nil)
	require.NoError(t, err)

	_, err = g.RetryPayment(context.Background(), "in_123")
	assert.ErrorIs(t, err, lifecycle.ErrUnavailable)
}
