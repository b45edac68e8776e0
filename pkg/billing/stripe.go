package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/observability"
)

// StripeConfig configures the Stripe gateway
type StripeConfig struct {
	APIKey string
	// URL overrides the API endpoint (tests, stripe-mock)
	URL        string
	HTTPClient *http.Client
	// MaxNetworkRetries is passed to the Stripe backend; 0 disables retries
	MaxNetworkRetries int64
}

// StripeGateway collects failed invoices through the Stripe API. It is the
// payment side of manual dunning actions.
type StripeGateway struct {
	api     *client.API
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewStripeGateway creates a gateway with its own backend, so several
// gateways (or tests) never share the package-level stripe.Key
func NewStripeGateway(cfg StripeConfig, logger *observability.Logger, metrics *observability.Metrics) (*StripeGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("stripe API key is required")
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	backendCfg := &stripe.BackendConfig{
		EnableTelemetry:   stripe.Bool(false),
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if cfg.URL != "" {
		backendCfg.URL = stripe.String(cfg.URL)
	}
	if cfg.HTTPClient != nil {
		backendCfg.HTTPClient = cfg.HTTPClient
	}

	api := &client.API{}
	api.Init(cfg.APIKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	})

	return &StripeGateway{api: api, logger: logger, metrics: metrics}, nil
}

// RetryPayment attempts to collect the invoice now. A declined card is a
// normal outcome (paid=false, nil error); only API and transport failures
// are returned as errors.
func (g *StripeGateway) RetryPayment(ctx context.Context, invoiceID string) (bool, error) {
	start := time.Now()
	params := &stripe.InvoicePayParams{}
	params.Context = ctx

	inv, err := g.api.Invoices.Pay(invoiceID, params)
	g.metrics.RecordPlatformRequest("stripe.invoice_pay", statusOf(err), start)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			g.logger.WithFields(map[string]interface{}{
				"invoice_id": invoiceID,
				"code":       string(serr.Code),
			}).Info("invoice payment declined")
			return false, nil
		}
		return false, fmt.Errorf("failed to pay invoice %s: %w", invoiceID, classify(err))
	}
	return inv.Paid || inv.Status == stripe.InvoiceStatusPaid, nil
}

// PaymentLink returns the hosted invoice page the client can pay on
func (g *StripeGateway) PaymentLink(ctx context.Context, invoiceID string) (string, error) {
	start := time.Now()
	params := &stripe.InvoiceParams{}
	params.Context = ctx

	inv, err := g.api.Invoices.Get(invoiceID, params)
	g.metrics.RecordPlatformRequest("stripe.invoice_get", statusOf(err), start)
	if err != nil {
		return "", fmt.Errorf("failed to load invoice %s: %w", invoiceID, classify(err))
	}
	if inv.HostedInvoiceURL == "" {
		return "", fmt.Errorf("invoice %s has no hosted payment page: %w", invoiceID, lifecycle.ErrInvalidTransition)
	}
	return inv.HostedInvoiceURL, nil
}

// classify maps Stripe failures onto the lifecycle error kinds
func classify(err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return fmt.Errorf("%w: %v", lifecycle.ErrUnavailable, err)
	}
	switch {
	case serr.HTTPStatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", lifecycle.ErrNotFound, serr.Msg)
	case serr.HTTPStatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", lifecycle.ErrConflict, serr.Msg)
	case serr.HTTPStatusCode == http.StatusTooManyRequests || serr.HTTPStatusCode >= 500:
		return fmt.Errorf("%w: %s", lifecycle.ErrUnavailable, serr.Msg)
	case serr.Type == stripe.ErrorTypeInvalidRequest:
		return fmt.Errorf("%w: %s", lifecycle.ErrInvalidTransition, serr.Msg)
	}
	return err
}

func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var serr *stripe.Error
	if errors.As(err, &serr) && serr.HTTPStatusCode != 0 {
		return serr.HTTPStatusCode
	}
	return 0
}
