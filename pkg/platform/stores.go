package platform

import (
	"context"
	"net/http"
	"net/url"

	"github.com/platinummonkey/clientops/pkg/deals"
	"github.com/platinummonkey/clientops/pkg/dunning"
	"github.com/platinummonkey/clientops/pkg/health"
	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/onboarding"
)

var (
	_ deals.Store      = (*Client)(nil)
	_ onboarding.Store = (*Client)(nil)
	_ dunning.Store    = (*Client)(nil)
	_ health.Store     = (*Client)(nil)
	_ dunning.Gateway  = (*Client)(nil)
)

func escape(id string) string {
	return url.PathEscape(id)
}

// GetDeal loads one deal
func (c *Client) GetDeal(ctx context.Context, id string) (deals.Deal, error) {
	var d deals.Deal
	err := c.get(ctx, "deals.get", "/v1/deals/"+escape(id), nil, &d)
	return d, err
}

// ListDeals returns one page of deals
func (c *Client) ListDeals(ctx context.Context, cursor string) (lifecycle.Page[deals.Deal], error) {
	var page lifecycle.Page[deals.Deal]
	err := c.get(ctx, "deals.list", "/v1/deals", cursorQuery(cursor), &page)
	return page, err
}

type transitionBody struct {
	Target  deals.Stage `json:"target"`
	Version string      `json:"version"`
}

// TransitionDeal asks the CRM to move the deal
func (c *Client) TransitionDeal(ctx context.Context, id string, target deals.Stage, version string) (deals.Deal, error) {
	var d deals.Deal
	err := c.send(ctx, "deals.transition", http.MethodPost, "/v1/deals/"+escape(id)+"/transition",
		transitionBody{Target: target, Version: version}, &d)
	return d, err
}

// DeleteDeal deletes a deal at the given version
func (c *Client) DeleteDeal(ctx context.Context, id string, version string) error {
	return c.do(ctx, "deals.delete", http.MethodDelete, "/v1/deals/"+escape(id), url.Values{"version": {version}}, nil, nil)
}

// ListOnboarding returns one page of onboarding summaries
func (c *Client) ListOnboarding(ctx context.Context, cursor string) (lifecycle.Page[onboarding.Summary], error) {
	var page lifecycle.Page[onboarding.Summary]
	err := c.get(ctx, "onboarding.list", "/v1/onboarding", cursorQuery(cursor), &page)
	return page, err
}

// SendReminder sends an onboarding reminder to the client
func (c *Client) SendReminder(ctx context.Context, organizationID string) error {
	return c.send(ctx, "onboarding.reminder", http.MethodPost,
		"/v1/onboarding/"+escape(organizationID)+"/reminders", struct{}{}, nil)
}

// ScheduleCall books an onboarding call
func (c *Client) ScheduleCall(ctx context.Context, organizationID string) error {
	return c.send(ctx, "onboarding.call", http.MethodPost,
		"/v1/onboarding/"+escape(organizationID)+"/calls", struct{}{}, nil)
}

type assignBody struct {
	AssigneeID string `json:"assignee_id"`
}

// AssignManager sets the client's account manager
func (c *Client) AssignManager(ctx context.Context, organizationID, assigneeID string) error {
	return c.send(ctx, "onboarding.assign", http.MethodPut,
		"/v1/onboarding/"+escape(organizationID)+"/manager", assignBody{AssigneeID: assigneeID}, nil)
}

type exportBody struct {
	OrganizationIDs []string `json:"organization_ids"`
}

// Export requests an onboarding export for the given clients
func (c *Client) Export(ctx context.Context, organizationIDs []string) (onboarding.ExportReceipt, error) {
	var r onboarding.ExportReceipt
	err := c.send(ctx, "onboarding.export", http.MethodPost, "/v1/onboarding/exports",
		exportBody{OrganizationIDs: organizationIDs}, &r)
	return r, err
}

// GetSequence loads one dunning sequence
func (c *Client) GetSequence(ctx context.Context, id string) (dunning.Sequence, error) {
	var s dunning.Sequence
	err := c.get(ctx, "dunning.get", "/v1/dunning/"+escape(id), nil, &s)
	return s, err
}

// ListSequences returns one page of dunning sequences
func (c *Client) ListSequences(ctx context.Context, cursor string) (lifecycle.Page[dunning.Sequence], error) {
	var page lifecycle.Page[dunning.Sequence]
	err := c.get(ctx, "dunning.list", "/v1/dunning", cursorQuery(cursor), &page)
	return page, err
}

type actionBody struct {
	Action  dunning.Action  `json:"action"`
	Outcome dunning.Outcome `json:"outcome"`
	Version string          `json:"version"`
}

// RecordAction stores a manual dunning action
func (c *Client) RecordAction(ctx context.Context, id string, action dunning.Action, outcome dunning.Outcome, version string) (dunning.Sequence, error) {
	var s dunning.Sequence
	err := c.send(ctx, "dunning.action", http.MethodPost, "/v1/dunning/"+escape(id)+"/actions",
		actionBody{Action: action, Outcome: outcome, Version: version}, &s)
	return s, err
}

type retryResult struct {
	Paid bool `json:"paid"`
}

// RetryPayment asks the billing service to charge the invoice again. A
// declined charge is reported as paid=false, not as an error.
func (c *Client) RetryPayment(ctx context.Context, invoiceID string) (bool, error) {
	var r retryResult
	err := c.send(ctx, "billing.retry", http.MethodPost, "/v1/invoices/"+escape(invoiceID)+"/retry", nil, &r)
	return r.Paid, err
}

type paymentLink struct {
	URL string `json:"url"`
}

// PaymentLink returns the hosted payment page of the invoice
func (c *Client) PaymentLink(ctx context.Context, invoiceID string) (string, error) {
	var l paymentLink
	err := c.get(ctx, "billing.link", "/v1/invoices/"+escape(invoiceID)+"/payment-link", nil, &l)
	return l.URL, err
}

// ListHealth returns one page of client health sub-scores
func (c *Client) ListHealth(ctx context.Context, cursor string) (lifecycle.Page[health.Scores], error) {
	var page lifecycle.Page[health.Scores]
	err := c.get(ctx, "health.list", "/v1/health-scores", cursorQuery(cursor), &page)
	return page, err
}
