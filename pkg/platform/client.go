package platform

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/observability"
)

const maxErrorBody = 4 << 10

// Config configures the billing/CRM client
type Config struct {
	BaseURL string
	Token   string
	// SigningSecret, when set, signs every request body with HMAC-SHA256
	SigningSecret string
	Timeout       time.Duration
	Retry         RetryConfig
}

// Client talks to the billing/CRM service over HTTP. It implements the
// store ports of the deals, onboarding, dunning and health packages.
type Client struct {
	base    *url.URL
	cfg     Config
	http    *http.Client
	retry   *RetryPolicy
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewClient creates a client. Outbound requests are traced with otelhttp.
func NewClient(cfg Config, logger *observability.Logger, metrics *observability.Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("platform base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid platform base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Client{
		base: base,
		cfg:  cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retry:   NewRetryPolicy(cfg.Retry),
		logger:  logger,
		metrics: metrics,
	}, nil
}

// StatusError is a non-2xx answer from the service. It unwraps to the
// lifecycle error kind matching the status code.
type StatusError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// Unwrap maps 404, 409, 422 and 5xx onto the lifecycle sentinels
func (e *StatusError) Unwrap() error {
	return kindOf(e.StatusCode)
}

func kindOf(status int) error {
	switch {
	case status == http.StatusNotFound:
		return lifecycle.ErrNotFound
	case status == http.StatusConflict, status == http.StatusPreconditionFailed:
		return lifecycle.ErrConflict
	case status == http.StatusUnprocessableEntity:
		return lifecycle.ErrInvalidTransition
	case status == http.StatusTooManyRequests, status >= 500:
		return lifecycle.ErrUnavailable
	}
	return nil
}

// Ping checks that the service answers; used by the readiness probe
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/healthz", nil, nil, nil)
}

// get performs an idempotent read, retrying while the service is unavailable
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	for attempt := 1; ; attempt++ {
		err := c.do(ctx, op, http.MethodGet, path, query, nil, out)
		if err == nil || !errors.Is(err, lifecycle.ErrUnavailable) || !c.retry.ShouldRetry(attempt) {
			return err
		}
		c.logger.WithError(err).WithFields(map[string]interface{}{
			"operation": op,
			"attempt":   attempt,
		}).Debug("retrying platform read")
		if werr := c.retry.wait(ctx, attempt); werr != nil {
			return err
		}
	}
}

// send performs a mutation exactly once
func (c *Client) send(ctx context.Context, op, method, path string, body, out interface{}) error {
	return c.do(ctx, op, method, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) error {
	start := time.Now()

	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if c.cfg.SigningSecret != "" {
		req.Header.Set("X-Clientops-Signature", Sign(payload, c.cfg.SigningSecret))
	}
	if rid := observability.GetRequestID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}
	if actor := observability.GetActor(ctx); actor != "" {
		req.Header.Set("X-Actor", actor)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordPlatformRequest(op, 0, start)
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return fmt.Errorf("%s: %w: %v", op, lifecycle.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordPlatformRequest(op, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Operation: op, StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(data))
}

// Sign returns the HMAC-SHA256 signature of payload
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by Sign
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

func cursorQuery(cursor string) url.Values {
	if cursor == "" {
		return nil
	}
	return url.Values{"cursor": {cursor}}
}
