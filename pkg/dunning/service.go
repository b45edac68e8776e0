package dunning

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/clientops/pkg/events"
	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/observability"
)

var tracer = otel.Tracer("github.com/platinummonkey/clientops/pkg/dunning")

// Store is the billing service's record of dunning sequences
type Store interface {
	GetSequence(ctx context.Context, id string) (Sequence, error)
	ListSequences(ctx context.Context, cursor string) (lifecycle.Page[Sequence], error)
	// RecordAction stores a manual action and its outcome and returns the
	// updated sequence. A stale version is reported as lifecycle.ErrConflict.
	RecordAction(ctx context.Context, id string, action Action, outcome Outcome, version string) (Sequence, error)
}

// Gateway collects payments for failed invoices
type Gateway interface {
	RetryPayment(ctx context.Context, invoiceID string) (paid bool, err error)
	PaymentLink(ctx context.Context, invoiceID string) (string, error)
}

// Result is the outcome of one manual action
type Result struct {
	Sequence Sequence `json:"sequence"`
	Outcome  Outcome  `json:"outcome"`
}

// Service runs manual dunning actions. Actions on sequences that are not
// ACTIVE are rejected before the gateway or the store is called.
type Service struct {
	store      Store
	gateway    Gateway
	classifier atomic.Pointer[Classifier]
	inflight   *lifecycle.InFlight
	publisher  events.Publisher
	logger     *observability.Logger
	metrics    *observability.Metrics
	clock      lifecycle.Clock
}

// Option customizes a Service
type Option func(*Service)

// WithClassifier sets the severity thresholds
func WithClassifier(c *Classifier) Option {
	return func(s *Service) { s.SetClassifier(c) }
}

// WithPublisher sets where actions are announced
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the Prometheus metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock sets the clock
func WithClock(c lifecycle.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates a dunning service
func NewService(store Store, gateway Gateway, opts ...Option) *Service {
	s := &Service{
		store:     store,
		gateway:   gateway,
		inflight:  lifecycle.NewInFlight(),
		publisher: events.NopPublisher{},
		logger:    observability.NopLogger(),
		clock:     lifecycle.SystemClock{},
	}
	s.classifier.Store(DefaultClassifier())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetClassifier swaps the thresholds at runtime (rules file reload)
func (s *Service) SetClassifier(c *Classifier) {
	if c != nil {
		s.classifier.Store(c)
	}
}

// List loads every sequence
func (s *Service) List(ctx context.Context) ([]Sequence, error) {
	all, err := lifecycle.CollectAll(ctx, s.store.ListSequences)
	if err != nil {
		return nil, fmt.Errorf("failed to list dunning sequences: %w", err)
	}
	return all, nil
}

// Views lists sequences with status (StatusAll for every one)
func (s *Service) Views(ctx context.Context, status Status) ([]View, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Views(all, status, lifecycle.NewPass(s.clock), s.classifier.Load()), nil
}

// View loads one sequence
func (s *Service) View(ctx context.Context, id string) (View, error) {
	seq, err := s.store.GetSequence(ctx, id)
	if err != nil {
		return View{}, fmt.Errorf("failed to get dunning sequence %s: %w", id, err)
	}
	return NewView(seq, lifecycle.NewPass(s.clock), s.classifier.Load()), nil
}

// Statistics computes the statistics over the full set
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	all, err := s.List(ctx)
	if err != nil {
		return Statistics{}, err
	}
	return ComputeStatistics(all, lifecycle.NewPass(s.clock), s.classifier.Load()), nil
}

// RetryPayment retries the failed invoice of an active sequence
func (s *Service) RetryPayment(ctx context.Context, id, version string) (Result, error) {
	return s.Act(ctx, id, ActionRetryPayment, version)
}

// SendPaymentLink sends the hosted invoice page to the client
func (s *Service) SendPaymentLink(ctx context.Context, id, version string) (Result, error) {
	return s.Act(ctx, id, ActionSendPaymentLink, version)
}

// Escalate hands an active sequence to the account manager
func (s *Service) Escalate(ctx context.Context, id, version string) (Result, error) {
	return s.Act(ctx, id, ActionEscalate, version)
}

// Act runs one manual action. On conflict the refetched sequence is returned
// together with an error wrapping lifecycle.ErrConflict.
func (s *Service) Act(ctx context.Context, id string, action Action, version string) (Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "dunning."+string(action))
	defer span.End()
	span.SetAttributes(attribute.String("dunning.id", id))

	log := s.logger.WithFields(map[string]interface{}{
		"sequence_id": id,
		"action":      string(action),
	})

	action, err := ParseAction(string(action))
	if err != nil {
		s.metrics.RecordTransition(entity, "unknown", observability.OutcomeRejected)
		return Result{}, fmt.Errorf("%v: %w", err, ErrActionNotApplicable)
	}

	release, err := s.inflight.Acquire(id)
	if err != nil {
		s.metrics.RecordTransition(entity, string(action), observability.OutcomeInFlight)
		return Result{}, err
	}
	defer release()
	defer s.metrics.ObserveAction(entity, string(action), start)

	current, err := s.store.GetSequence(ctx, id)
	if err != nil {
		s.metrics.RecordTransition(entity, string(action), observability.OutcomeOf(err))
		span.RecordError(err)
		return Result{}, fmt.Errorf("failed to load dunning sequence %s: %w", id, err)
	}
	if err := CheckAction(current, action); err != nil {
		s.metrics.RecordTransition(entity, string(action), observability.OutcomeRejected)
		log.WithField("status", string(current.Status)).Debug("dunning action rejected")
		return Result{Sequence: current}, err
	}

	var outcome Outcome
	switch action {
	case ActionRetryPayment:
		outcome.Paid, err = s.gateway.RetryPayment(ctx, current.InvoiceID)
	case ActionSendPaymentLink:
		outcome.PaymentLink, err = s.gateway.PaymentLink(ctx, current.InvoiceID)
	case ActionEscalate:
	}
	if err != nil {
		s.metrics.RecordTransition(entity, string(action), observability.OutcomeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment gateway failed")
		return Result{Sequence: current}, fmt.Errorf("failed to %s for sequence %s: %w", action, id, err)
	}

	expected, err := Expect(current, action, outcome)
	if err != nil {
		return Result{Sequence: current}, err
	}

	if version == "" {
		version = current.Version
	}
	updated, err := s.store.RecordAction(ctx, id, action, outcome, version)
	if err != nil {
		s.metrics.RecordTransition(entity, string(action), observability.OutcomeOf(err))
		span.RecordError(err)
		if errors.Is(err, lifecycle.ErrConflict) {
			latest, ferr := s.store.GetSequence(ctx, id)
			if ferr != nil {
				log.WithError(ferr).Warn("failed to refetch dunning sequence after conflict")
				return Result{Sequence: current, Outcome: outcome}, fmt.Errorf("dunning sequence %s changed concurrently: %w", id, err)
			}
			return Result{Sequence: latest, Outcome: outcome}, fmt.Errorf("dunning sequence %s changed concurrently: %w", id, err)
		}
		return Result{Sequence: current, Outcome: outcome}, fmt.Errorf("failed to record %s for sequence %s: %w", action, id, err)
	}

	if updated.Status != expected {
		log.WithFields(map[string]interface{}{
			"expected": string(expected),
			"actual":   string(updated.Status),
		}).Warn("billing service reported an unexpected dunning status")
	}

	s.metrics.RecordTransition(entity, string(action), observability.OutcomeApplied)
	log.WithFields(map[string]interface{}{
		"from": string(current.Status),
		"to":   string(updated.Status),
		"paid": outcome.Paid,
	}).Info("dunning action recorded")

	e := events.New(events.DunningActionTaken, id, s.clock.Now())
	e.From, e.To = string(current.Status), string(updated.Status)
	e.Actor = observability.GetActor(ctx)
	e.Attributes = map[string]string{
		"action":          string(action),
		"organization_id": current.OrganizationID,
		"invoice_id":      current.InvoiceID,
	}
	if perr := s.publisher.Publish(ctx, e); perr != nil {
		log.WithError(perr).Warn("failed to publish dunning action")
	}

	return Result{Sequence: updated, Outcome: outcome}, nil
}
