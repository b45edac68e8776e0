package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/platinummonkey/clientops/pkg/deals"
	"github.com/platinummonkey/clientops/pkg/dunning"
	"github.com/platinummonkey/clientops/pkg/health"
	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/money"
	"github.com/platinummonkey/clientops/pkg/onboarding"
)

// DefaultPageSize is the number of rows read per page
const DefaultPageSize = 500

// Config holds replica connection settings
type Config struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
	PageSize    int
}

// Reader reads lifecycle snapshots from the reporting replica. Pages are
// keyed by primary key, so the cursor is the last ID of the previous page.
type Reader struct {
	db       *sql.DB
	pageSize int
}

// Open connects to the replica and verifies the connection
func Open(cfg Config) (*Reader, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open reporting replica: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}
	if cfg.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.MaxIdleTime)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping reporting replica: %w", err)
	}

	return New(db, cfg.PageSize), nil
}

// New wraps an open database
func New(db *sql.DB, pageSize int) *Reader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Reader{db: db, pageSize: pageSize}
}

// DB exposes the pool for health checks
func (r *Reader) DB() *sql.DB {
	return r.db
}

// Close closes the pool
func (r *Reader) Close() error {
	return r.db.Close()
}

func unavailable(what string, err error) error {
	return fmt.Errorf("failed to read %s: %w: %w", what, lifecycle.ErrUnavailable, err)
}

// page trims the extra row fetched to detect a following page
func page[T any](items []T, limit int, key func(T) string) lifecycle.Page[T] {
	if len(items) <= limit {
		if items == nil {
			items = []T{}
		}
		return lifecycle.Page[T]{Items: items}
	}
	items = items[:limit]
	return lifecycle.Page[T]{Items: items, Next: key(items[limit-1])}
}

const dealsQuery = `
	SELECT id, name, organization_id, stage, estimated_value_minor, currency,
	       expected_close_date, source, assignee_id, version, updated_at
	FROM deals
	WHERE id > $1
	ORDER BY id
	LIMIT $2
`

// ListDeals reads one page of deals
func (r *Reader) ListDeals(ctx context.Context, cursor string) (lifecycle.Page[deals.Deal], error) {
	rows, err := r.db.QueryContext(ctx, dealsQuery, cursor, r.pageSize+1)
	if err != nil {
		return lifecycle.Page[deals.Deal]{}, unavailable("deals", err)
	}
	defer rows.Close()

	var out []deals.Deal
	for rows.Next() {
		var (
			d        deals.Deal
			minor    int64
			currency string
			closeAt  sql.NullTime
			source   sql.NullString
			assignee sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.OrganizationID, &d.Stage, &minor, &currency,
			&closeAt, &source, &assignee, &d.Version, &d.UpdatedAt); err != nil {
			return lifecycle.Page[deals.Deal]{}, fmt.Errorf("failed to scan deal: %w", err)
		}
		d.EstimatedValue = money.New(minor, currency)
		if closeAt.Valid {
			date := lifecycle.DateOf(closeAt.Time)
			d.ExpectedCloseDate = &date
		}
		d.Source = source.String
		if assignee.Valid {
			a := assignee.String
			d.AssigneeID = &a
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return lifecycle.Page[deals.Deal]{}, unavailable("deals", err)
	}
	return page(out, r.pageSize, func(d deals.Deal) string { return d.ID }), nil
}

const onboardingQuery = `
	SELECT organization_id, organization_name, total_points, max_points,
	       started_at, last_activity_at, completed_at
	FROM onboarding_progress
	WHERE organization_id > $1
	ORDER BY organization_id
	LIMIT $2
`

// ListOnboarding reads one page of onboarding summaries
func (r *Reader) ListOnboarding(ctx context.Context, cursor string) (lifecycle.Page[onboarding.Summary], error) {
	rows, err := r.db.QueryContext(ctx, onboardingQuery, cursor, r.pageSize+1)
	if err != nil {
		return lifecycle.Page[onboarding.Summary]{}, unavailable("onboarding progress", err)
	}
	defer rows.Close()

	var out []onboarding.Summary
	for rows.Next() {
		var (
			s                            onboarding.Summary
			name                         sql.NullString
			started, activity, completed sql.NullTime
		)
		if err := rows.Scan(&s.OrganizationID, &name, &s.TotalPoints, &s.MaxPoints,
			&started, &activity, &completed); err != nil {
			return lifecycle.Page[onboarding.Summary]{}, fmt.Errorf("failed to scan onboarding progress: %w", err)
		}
		s.OrganizationName = name.String
		s.StartedAt = timePtr(started)
		s.LastActivityAt = timePtr(activity)
		s.CompletedAt = timePtr(completed)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return lifecycle.Page[onboarding.Summary]{}, unavailable("onboarding progress", err)
	}
	return page(out, r.pageSize, func(s onboarding.Summary) string { return s.OrganizationID }), nil
}

const sequencesQuery = `
	SELECT id, organization_id, organization_name, invoice_id, amount_minor, currency,
	       status, current_step, total_steps, failed_at, resolved_at, failure_reason, version
	FROM dunning_sequences
	WHERE id > $1
	ORDER BY id
	LIMIT $2
`

// ListSequences reads one page of dunning sequences
func (r *Reader) ListSequences(ctx context.Context, cursor string) (lifecycle.Page[dunning.Sequence], error) {
	rows, err := r.db.QueryContext(ctx, sequencesQuery, cursor, r.pageSize+1)
	if err != nil {
		return lifecycle.Page[dunning.Sequence]{}, unavailable("dunning sequences", err)
	}
	defer rows.Close()

	var out []dunning.Sequence
	for rows.Next() {
		var (
			s        dunning.Sequence
			name     sql.NullString
			minor    int64
			currency string
			resolved sql.NullTime
			reason   sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.OrganizationID, &name, &s.InvoiceID, &minor, &currency,
			&s.Status, &s.CurrentStep, &s.TotalSteps, &s.FailedAt, &resolved, &reason, &s.Version); err != nil {
			return lifecycle.Page[dunning.Sequence]{}, fmt.Errorf("failed to scan dunning sequence: %w", err)
		}
		s.OrganizationName = name.String
		s.InvoiceAmount = money.New(minor, currency)
		s.ResolvedAt = timePtr(resolved)
		s.FailureReason = reason.String
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return lifecycle.Page[dunning.Sequence]{}, unavailable("dunning sequences", err)
	}
	return page(out, r.pageSize, func(s dunning.Sequence) string { return s.ID }), nil
}

const healthQuery = `
	SELECT organization_id, organization_name, usage_score, payment_score,
	       subscription_score, score_change, calculated_at
	FROM client_health_scores
	WHERE organization_id > $1
	ORDER BY organization_id
	LIMIT $2
`

// ListHealth reads one page of client health sub-scores
func (r *Reader) ListHealth(ctx context.Context, cursor string) (lifecycle.Page[health.Scores], error) {
	rows, err := r.db.QueryContext(ctx, healthQuery, cursor, r.pageSize+1)
	if err != nil {
		return lifecycle.Page[health.Scores]{}, unavailable("client health", err)
	}
	defer rows.Close()

	var out []health.Scores
	for rows.Next() {
		var (
			s      health.Scores
			name   sql.NullString
			change sql.NullInt64
		)
		if err := rows.Scan(&s.OrganizationID, &name, &s.Usage, &s.Payment,
			&s.Subscription, &change, &s.CalculatedAt); err != nil {
			return lifecycle.Page[health.Scores]{}, fmt.Errorf("failed to scan client health: %w", err)
		}
		s.OrganizationName = name.String
		s.ScoreChange = int(change.Int64)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return lifecycle.Page[health.Scores]{}, unavailable("client health", err)
	}
	return page(out, r.pageSize, func(s health.Scores) string { return s.OrganizationID }), nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
