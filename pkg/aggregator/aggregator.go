package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/clientops/pkg/cache"
	"github.com/platinummonkey/clientops/pkg/deals"
	"github.com/platinummonkey/clientops/pkg/dunning"
	"github.com/platinummonkey/clientops/pkg/events"
	"github.com/platinummonkey/clientops/pkg/health"
	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/notify"
	"github.com/platinummonkey/clientops/pkg/observability"
	"github.com/platinummonkey/clientops/pkg/onboarding"
)

var tracer = otel.Tracer("github.com/platinummonkey/clientops/pkg/aggregator")

// ErrNoDashboard is returned by Latest before the first successful run
var ErrNoDashboard = fmt.Errorf("no dashboard computed yet: %w", lifecycle.ErrNotFound)

// ErrSuperseded is returned by a run whose result was discarded because a
// newer run started after it, or the aggregator was closed
var ErrSuperseded = errors.New("dashboard run superseded")

// Source is the read side of every lifecycle store. Both the platform client
// and the reporting replica reader implement it.
type Source interface {
	ListDeals(ctx context.Context, cursor string) (lifecycle.Page[deals.Deal], error)
	ListOnboarding(ctx context.Context, cursor string) (lifecycle.Page[onboarding.Summary], error)
	ListSequences(ctx context.Context, cursor string) (lifecycle.Page[dunning.Sequence], error)
	ListHealth(ctx context.Context, cursor string) (lifecycle.Page[health.Scores], error)
}

// Dashboard is every lifecycle headline computed within one pass
type Dashboard struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Pipeline    deals.PipelineMetrics  `json:"pipeline"`
	Onboarding  onboarding.Overview    `json:"onboarding"`
	Dunning     dunning.Statistics     `json:"dunning"`
	Sequences   map[dunning.Status]int `json:"sequences"`
	Health      health.Summary         `json:"health"`
	Weights     health.Weights         `json:"weights"`
	Thresholds  dunning.Thresholds     `json:"thresholds"`
	Alerts      []Alert                `json:"alerts,omitempty"`
}

// snapshot is the raw data one run is computed from
type snapshot struct {
	deals      []deals.Deal
	onboarding []onboarding.Summary
	sequences  []dunning.Sequence
	health     []health.Scores
}

// Aggregator periodically recomputes the dashboard
type Aggregator struct {
	source     Source
	cache      cache.Cache
	scorer     atomic.Pointer[health.Scorer]
	classifier atomic.Pointer[dunning.Classifier]
	limits     atomic.Pointer[AlertLimits]
	publisher  events.Publisher
	notifier   notify.Notifier
	logger     *observability.Logger
	metrics    *observability.Metrics
	clock      lifecycle.Clock
	scope      *lifecycle.Scope

	// applyMu orders the liveness check with the writes it guards
	applyMu sync.Mutex
	mu      sync.RWMutex
	last    *Dashboard
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithCache stores each dashboard under cache.DashboardKey
func WithCache(c cache.Cache) Option {
	return func(a *Aggregator) { a.cache = c }
}

// WithPublisher publishes DashboardRefreshed after each run
func WithPublisher(p events.Publisher) Option {
	return func(a *Aggregator) { a.publisher = p }
}

// WithNotifier reports alerts raised by a run
func WithNotifier(n notify.Notifier) Option {
	return func(a *Aggregator) { a.notifier = n }
}

// WithAlertLimits replaces the default alert limits
func WithAlertLimits(l AlertLimits) Option {
	return func(a *Aggregator) { a.limits.Store(&l) }
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithMetrics records run metrics and dashboard gauges
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithClock replaces the system clock
func WithClock(c lifecycle.Clock) Option {
	return func(a *Aggregator) { a.clock = c }
}

// New creates an aggregator with equal health weights and default dunning
// thresholds until SetScorer or SetClassifier is called
func New(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:    source,
		publisher: events.NopPublisher{},
		logger:    observability.NopLogger(),
		clock:     lifecycle.SystemClock{},
		scope:     lifecycle.NewScope(),
	}
	limits := DefaultAlertLimits()
	a.limits.Store(&limits)
	for _, opt := range opts {
		opt(a)
	}
	scorer, _ := health.NewScorer(health.EqualWeights())
	a.scorer.Store(scorer)
	a.classifier.Store(dunning.DefaultClassifier())
	return a
}

// SetScorer replaces the health scorer used by later runs
func (a *Aggregator) SetScorer(s *health.Scorer) {
	if s != nil {
		a.scorer.Store(s)
	}
}

// SetClassifier replaces the dunning classifier used by later runs
func (a *Aggregator) SetClassifier(c *dunning.Classifier) {
	if c != nil {
		a.classifier.Store(c)
	}
}

// SetAlertLimits replaces the limits checked after later runs
func (a *Aggregator) SetAlertLimits(l AlertLimits) {
	a.limits.Store(&l)
}

// Close discards the result of every run still in flight. Runs started
// afterwards are discarded too.
func (a *Aggregator) Close() {
	a.scope.Close()
}

// Run fetches all four snapshots concurrently and recomputes the dashboard.
// When a fetch fails the previous dashboard stays current and the error is
// returned; the caller decides whether that is fatal. A run overtaken by a
// newer one returns its dashboard with ErrSuperseded and applies nothing.
func (a *Aggregator) Run(ctx context.Context) (Dashboard, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "aggregator.run")
	defer span.End()

	ticket := a.scope.Begin()
	snap, err := a.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		a.recordRun("failed", start)
		a.logger.WithError(err).Warn("dashboard refresh failed, keeping previous dashboard")
		return Dashboard{}, fmt.Errorf("failed to refresh dashboard: %w", err)
	}

	d := a.compute(snap, lifecycle.NewPass(a.clock))
	span.SetAttributes(
		attribute.Int("deals", len(snap.deals)),
		attribute.Int("onboarding", len(snap.onboarding)),
		attribute.Int("sequences", len(snap.sequences)),
		attribute.Int("clients", len(snap.health)),
	)

	if !a.apply(ctx, ticket, d) {
		a.recordRun("superseded", start)
		a.logger.Info("dashboard run superseded, result discarded")
		return d, ErrSuperseded
	}
	a.alert(ctx, d.Alerts)

	ev := events.New(events.DashboardRefreshed, "dashboard", d.GeneratedAt)
	ev.Attributes = map[string]string{
		"deals":     fmt.Sprint(d.Pipeline.Total),
		"at_risk":   fmt.Sprint(d.Health.AtRisk),
		"alerts":    fmt.Sprint(len(d.Alerts)),
		"generated": d.GeneratedAt.Format(time.RFC3339),
	}
	if err := a.publisher.Publish(ctx, ev); err != nil {
		a.logger.WithError(err).Warn("failed to publish dashboard event")
	}

	a.recordRun("succeeded", start)
	if a.metrics != nil {
		a.metrics.LastAggregationUnixTS.Set(float64(d.GeneratedAt.Unix()))
	}
	a.logger.WithFields(map[string]interface{}{
		"deals":       d.Pipeline.Total,
		"onboarding":  d.Onboarding.TotalInOnboarding,
		"sequences":   d.Dunning.ActiveSequences + d.Dunning.EscalatedCount,
		"clients":     d.Health.Total,
		"alerts":      len(d.Alerts),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("dashboard refreshed")
	return d, nil
}

// apply publishes d as the current dashboard if ticket is still the latest
func (a *Aggregator) apply(ctx context.Context, ticket lifecycle.Ticket, d Dashboard) bool {
	a.applyMu.Lock()
	defer a.applyMu.Unlock()

	return lifecycle.Deliver(ticket, d, func(d Dashboard) {
		a.mu.Lock()
		a.last = &d
		a.mu.Unlock()

		if a.cache != nil {
			if err := cache.SetJSON(ctx, a.cache, cache.DashboardKey, d); err != nil {
				a.logger.WithError(err).Warn("failed to cache dashboard")
			}
		}
		a.setGauges(d)
	})
}

func (a *Aggregator) fetch(ctx context.Context) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.deals, err = lifecycle.CollectAll(gctx, a.source.ListDeals)
		return wrap("deals", err)
	})
	g.Go(func() (err error) {
		snap.onboarding, err = lifecycle.CollectAll(gctx, a.source.ListOnboarding)
		return wrap("onboarding", err)
	})
	g.Go(func() (err error) {
		snap.sequences, err = lifecycle.CollectAll(gctx, a.source.ListSequences)
		return wrap("dunning sequences", err)
	})
	g.Go(func() (err error) {
		snap.health, err = lifecycle.CollectAll(gctx, a.source.ListHealth)
		return wrap("client health", err)
	})
	return snap, g.Wait()
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

// compute derives every headline with the same pass
func (a *Aggregator) compute(snap snapshot, pass lifecycle.Pass) Dashboard {
	scorer := a.scorer.Load()
	classifier := a.classifier.Load()

	d := Dashboard{
		GeneratedAt: pass.Now,
		Pipeline:    deals.ComputePipeline(snap.deals, pass),
		Onboarding:  onboarding.Summarize(onboarding.DeriveAll(snap.onboarding, pass), pass),
		Dunning:     dunning.ComputeStatistics(snap.sequences, pass, classifier),
		Sequences:   make(map[dunning.Status]int, len(dunning.Statuses)),
		Health:      health.Summarize(scorer.ScoreAll(snap.health)),
		Weights:     scorer.Weights(),
		Thresholds:  classifier.Thresholds(),
	}
	for _, s := range dunning.Statuses {
		d.Sequences[s] = 0
	}
	for _, s := range snap.sequences {
		d.Sequences[s.Status]++
	}
	d.Alerts = Evaluate(d, *a.limits.Load())
	return d
}

// Latest returns the most recent dashboard, from memory or the cache. It
// reports ErrNoDashboard when neither holds one.
func (a *Aggregator) Latest(ctx context.Context) (Dashboard, error) {
	a.mu.RLock()
	last := a.last
	a.mu.RUnlock()
	if last != nil {
		return *last, nil
	}
	if a.cache == nil {
		return Dashboard{}, ErrNoDashboard
	}
	d, ok, err := cache.GetJSON[Dashboard](ctx, a.cache, cache.DashboardKey)
	if err != nil {
		if errors.Is(err, lifecycle.ErrUnavailable) {
			return Dashboard{}, err
		}
		return Dashboard{}, fmt.Errorf("failed to read cached dashboard: %w", err)
	}
	if !ok {
		return Dashboard{}, ErrNoDashboard
	}
	return d, nil
}

func (a *Aggregator) recordRun(status string, start time.Time) {
	if a.metrics == nil {
		return
	}
	a.metrics.AggregationRunsTotal.WithLabelValues(status).Inc()
	a.metrics.AggregationDuration.Observe(time.Since(start).Seconds())
}

func (a *Aggregator) setGauges(d Dashboard) {
	m := a.metrics
	if m == nil {
		return
	}
	for stage, n := range d.Pipeline.ByStage {
		m.DealsByStage.WithLabelValues(string(stage)).Set(float64(n))
	}
	m.PipelineConversionRate.Set(d.Pipeline.ConversionRate)
	for phase, n := range d.Onboarding.ByPhase {
		m.OnboardingByPhase.WithLabelValues(string(phase)).Set(float64(n))
	}
	for sev, n := range d.Onboarding.BySeverity {
		m.OnboardingStalled.WithLabelValues(string(sev)).Set(float64(n))
	}
	for status, n := range d.Sequences {
		m.DunningSequences.WithLabelValues(string(status)).Set(float64(n))
	}
	m.DunningRecoveryRate.Set(d.Dunning.RecoveryRate)
	m.RevenueAtRiskMinor.Reset()
	for _, amt := range d.Dunning.RevenueAtRisk {
		m.RevenueAtRiskMinor.WithLabelValues(amt.Currency).Set(float64(amt.Minor))
	}
	for risk, n := range d.Health.ByRisk {
		m.ClientsByRisk.WithLabelValues(string(risk)).Set(float64(n))
	}
}

func (a *Aggregator) alert(ctx context.Context, alerts []Alert) {
	if a.notifier == nil {
		return
	}
	for _, al := range alerts {
		a.notifier.Notify(ctx, al.Notice())
	}
}
