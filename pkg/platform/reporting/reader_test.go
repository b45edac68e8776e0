package reporting

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/clientops/pkg/deals"
	"github.com/platinummonkey/clientops/pkg/dunning"
	"github.com/platinummonkey/clientops/pkg/lifecycle"
)

func newMock(t *testing.T, pageSize int) (*Reader, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, pageSize), mock
}

func TestListDeals_Paging(t *testing.T) {
	r, mock := newMock(t, 2)
	updated := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	closeAt := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)

	cols := []string{"id", "name", "organization_id", "stage", "estimated_value_minor", "currency",
		"expected_close_date", "source", "assignee_id", "version", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM deals")).
		WithArgs("", 3).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("d1", "Acme", "org-1", "LEAD", int64(150000), "usd", closeAt, "referral", "u-1", "v1", updated).
			AddRow("d2", "Globex", "org-2", "WON", int64(9900), "EUR", nil, nil, nil, "v4", updated).
			AddRow("d3", "Initech", "org-3", "LOST", int64(0), "USD", nil, nil, nil, "v1", updated))

	page, err := r.ListDeals(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "d2", page.Next)

	d := page.Items[0]
	assert.Equal(t, deals.StageLead, d.Stage)
	assert.Equal(t, int64(150000), d.EstimatedValue.Minor)
	assert.Equal(t, "USD", d.EstimatedValue.Currency)
	require.NotNil(t, d.ExpectedCloseDate)
	assert.Equal(t, lifecycle.DateOf(closeAt), *d.ExpectedCloseDate)
	require.NotNil(t, d.AssigneeID)
	assert.Equal(t, "u-1", *d.AssigneeID)

	assert.Nil(t, page.Items[1].ExpectedCloseDate)
	assert.Nil(t, page.Items[1].AssigneeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDeals_LastPage(t *testing.T) {
	r, mock := newMock(t, 2)
	mock.ExpectQuery(regexp.QuoteMeta("FROM deals")).
		WithArgs("d2", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	page, err := r.ListDeals(context.Background(), "d2")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Next)
}

func TestListDeals_QueryFailureIsUnavailable(t *testing.T) {
	r, mock := newMock(t, 10)
	mock.ExpectQuery(regexp.QuoteMeta("FROM deals")).WillReturnError(errors.New("connection reset"))

	_, err := r.ListDeals(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, lifecycle.ErrUnavailable)
}

func TestListOnboarding(t *testing.T) {
	r, mock := newMock(t, 10)
	last := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM onboarding_progress")).
		WithArgs("", 11).
		WillReturnRows(sqlmock.NewRows([]string{"organization_id", "organization_name", "total_points",
			"max_points", "started_at", "last_activity_at", "completed_at"}).
			AddRow("org-1", "Acme", 45, 150, last, last, nil))

	page, err := r.ListOnboarding(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	s := page.Items[0]
	assert.Equal(t, 45, s.TotalPoints)
	require.NotNil(t, s.LastActivityAt)
	assert.Nil(t, s.CompletedAt)
	assert.Empty(t, page.Next)
}

func TestListSequences(t *testing.T) {
	r, mock := newMock(t, 10)
	failed := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM dunning_sequences")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "organization_name", "invoice_id",
			"amount_minor", "currency", "status", "current_step", "total_steps", "failed_at",
			"resolved_at", "failure_reason", "version"}).
			AddRow("s1", "org-1", "Acme", "in_1", int64(4200), "usd", "ACTIVE", 2, 4, failed, nil, "card_declined", "v2"))

	page, err := r.ListSequences(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	s := page.Items[0]
	assert.Equal(t, dunning.StatusActive, s.Status)
	assert.Equal(t, "USD", s.InvoiceAmount.Currency)
	assert.Equal(t, "card_declined", s.FailureReason)
	assert.Nil(t, s.ResolvedAt)
}

func TestListHealth(t *testing.T) {
	r, mock := newMock(t, 10)
	at := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM client_health_scores")).
		WillReturnRows(sqlmock.NewRows([]string{"organization_id", "organization_name", "usage_score",
			"payment_score", "subscription_score", "score_change", "calculated_at"}).
			AddRow("org-1", "Acme", 70, 40, 90, int64(-6), at).
			AddRow("org-2", nil, 10, 20, 30, nil, at))

	page, err := r.ListHealth(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, -6, page.Items[0].ScoreChange)
	assert.Equal(t, 0, page.Items[1].ScoreChange)
	assert.Equal(t, "", page.Items[1].OrganizationName)
}

func TestListHealth_RowError(t *testing.T) {
	r, mock := newMock(t, 10)
	at := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM client_health_scores")).
		WillReturnRows(sqlmock.NewRows([]string{"organization_id", "organization_name", "usage_score",
			"payment_score", "subscription_score", "score_change", "calculated_at"}).
			AddRow("org-1", "Acme", 70, 40, 90, int64(0), at).
			RowError(0, errors.New("replica went away")))

	_, err := r.ListHealth(context.Background(), "")
	assert.ErrorIs(t, err, lifecycle.ErrUnavailable)
}
