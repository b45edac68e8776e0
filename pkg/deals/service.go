package deals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/clientops/pkg/events"
	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/observability"
)

var tracer = otel.Tracer("github.com/platinummonkey/clientops/pkg/deals")

// Store is the CRM service as seen by the deal pipeline
type Store interface {
	GetDeal(ctx context.Context, id string) (Deal, error)
	ListDeals(ctx context.Context, cursor string) (lifecycle.Page[Deal], error)
	// TransitionDeal asks the service to move the deal. version is the one the
	// caller last saw; a mismatch is reported as lifecycle.ErrConflict.
	TransitionDeal(ctx context.Context, id string, target Stage, version string) (Deal, error)
	DeleteDeal(ctx context.Context, id string, version string) error
}

// TransitionRequest asks for one deal move. Version is optional; when empty
// the version of the freshly loaded deal is used.
type TransitionRequest struct {
	DealID  string
	Target  Stage
	Version string
}

// Service validates pipeline moves locally and forwards only legal ones to the
// CRM service, one request per deal at a time.
type Service struct {
	store     Store
	board     Board
	inflight  *lifecycle.InFlight
	publisher events.Publisher
	logger    *observability.Logger
	metrics   *observability.Metrics
	clock     lifecycle.Clock
}

// Option customizes a Service
type Option func(*Service)

// WithPublisher sets where acknowledged transitions are announced
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

// WithClock sets the clock used for event timestamps and pipeline metrics
func WithClock(c lifecycle.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates a deal service on top of the CRM store
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		board:     DefaultBoard(),
		inflight:  lifecycle.NewInFlight(),
		publisher: events.NopPublisher{},
		logger:    observability.NopLogger(),
		clock:     lifecycle.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Overview is the kanban board and the pipeline metrics of one listing
type Overview struct {
	Columns  []Column        `json:"columns"`
	Pipeline PipelineMetrics `json:"pipeline"`
}

// Busy reports whether a move for the deal is outstanding
func (s *Service) Busy(id string) bool {
	return s.inflight.Busy(id)
}

// Get loads one deal
func (s *Service) Get(ctx context.Context, id string) (Deal, error) {
	d, err := s.store.GetDeal(ctx, id)
	if err != nil {
		return Deal{}, fmt.Errorf("failed to get deal %s: %w", id, err)
	}
	return d, nil
}

// List loads every deal, following pagination to the end
func (s *Service) List(ctx context.Context) ([]Deal, error) {
	all, err := lifecycle.CollectAll(ctx, s.store.ListDeals)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	return all, nil
}

// Pipeline computes pipeline metrics over the full deal set
func (s *Service) Pipeline(ctx context.Context) (PipelineMetrics, error) {
	all, err := s.List(ctx)
	if err != nil {
		return PipelineMetrics{}, err
	}
	return ComputePipeline(all, lifecycle.NewPass(s.clock)), nil
}

// Overview lists the deals once and lays out the board and the pipeline
// metrics from that one snapshot
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	all, err := s.List(ctx)
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		Columns:  s.board.Lay(all),
		Pipeline: ComputePipeline(all, lifecycle.NewPass(s.clock)),
	}, nil
}

// Act performs a named action on a deal
func (s *Service) Act(ctx context.Context, id string, action Action, version string) (Deal, error) {
	target, err := TargetOf(action)
	if err != nil {
		return Deal{}, &lifecycle.TransitionError{Entity: entity, To: string(action), Reason: err.Error()}
	}
	return s.Transition(ctx, TransitionRequest{DealID: id, Target: target, Version: version})
}

// Drop performs a board drop. Non-column targets are rejected before any I/O.
func (s *Service) Drop(ctx context.Context, id string, column Stage, version string) (Deal, error) {
	if !s.board.HasColumn(column) {
		return Deal{}, &lifecycle.TransitionError{
			Entity: entity,
			To:     string(column),
			Reason: "not a board column",
		}
	}
	return s.Transition(ctx, TransitionRequest{DealID: id, Target: column, Version: version})
}

// Transition validates the move against the current deal and, only if legal,
// asks the CRM service to apply it. On conflict the refetched deal is returned
// together with an error wrapping lifecycle.ErrConflict; the caller must show
// that copy instead of merging.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (Deal, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "deals.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("deal.id", req.DealID),
		attribute.String("deal.target", string(req.Target)),
	)

	log := s.logger.WithFields(map[string]interface{}{
		"deal_id": req.DealID,
		"target":  string(req.Target),
	})

	release, err := s.inflight.Acquire(req.DealID)
	if err != nil {
		s.metrics.RecordTransition(entity, string(req.Target), observability.OutcomeInFlight)
		return Deal{}, err
	}
	defer release()
	defer s.metrics.ObserveAction(entity, string(req.Target), start)

	current, err := s.store.GetDeal(ctx, req.DealID)
	if err != nil {
		s.metrics.RecordTransition(entity, string(req.Target), observability.OutcomeOf(err))
		span.RecordError(err)
		return Deal{}, fmt.Errorf("failed to load deal %s: %w", req.DealID, err)
	}

	next, err := AttemptTransition(current, req.Target)
	if err != nil {
		s.metrics.RecordTransition(entity, string(req.Target), observability.OutcomeRejected)
		log.WithField("stage", string(current.Stage)).Debug("deal transition rejected")
		return current, err
	}
	if next.Stage == current.Stage {
		s.metrics.RecordTransition(entity, string(req.Target), observability.OutcomeNoop)
		return current, nil
	}

	version := req.Version
	if version == "" {
		version = current.Version
	}

	updated, err := s.store.TransitionDeal(ctx, req.DealID, req.Target, version)
	if err != nil {
		s.metrics.RecordTransition(entity, string(req.Target), observability.OutcomeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")

		if errors.Is(err, lifecycle.ErrConflict) {
			latest, ferr := s.store.GetDeal(ctx, req.DealID)
			if ferr != nil {
				log.WithError(ferr).Warn("failed to refetch deal after conflict")
				return current, fmt.Errorf("deal %s changed concurrently: %w", req.DealID, err)
			}
			log.WithField("stage", string(latest.Stage)).Info("deal changed concurrently, refetched")
			return latest, fmt.Errorf("deal %s changed concurrently: %w", req.DealID, err)
		}
		return current, fmt.Errorf("failed to move deal %s to %s: %w", req.DealID, req.Target, err)
	}

	s.metrics.RecordTransition(entity, string(req.Target), observability.OutcomeApplied)
	log.WithField("from", string(current.Stage)).Info("deal stage changed")

	e := events.New(events.StageChanged, updated.ID, s.clock.Now())
	e.From, e.To = string(current.Stage), string(updated.Stage)
	e.Actor = observability.GetActor(ctx)
	if perr := s.publisher.Publish(ctx, e); perr != nil {
		log.WithError(perr).Warn("failed to publish stage change")
	}

	return updated, nil
}

// Delete removes a deal. Only LEAD and LOST deals can be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	release, err := s.inflight.Acquire(id)
	if err != nil {
		return err
	}
	defer release()

	current, err := s.store.GetDeal(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load deal %s: %w", id, err)
	}
	if !CanDelete(current) {
		return &lifecycle.TransitionError{
			Entity: entity,
			From:   string(current.Stage),
			To:     "DELETED",
			Reason: "only LEAD or LOST deals can be deleted",
		}
	}

	if err := s.store.DeleteDeal(ctx, id, current.Version); err != nil {
		return fmt.Errorf("failed to delete deal %s: %w", id, err)
	}

	e := events.New(events.DealDeleted, id, s.clock.Now())
	e.From = string(current.Stage)
	e.Actor = observability.GetActor(ctx)
	if perr := s.publisher.Publish(ctx, e); perr != nil {
		s.logger.WithError(perr).WithField("deal_id", id).Warn("failed to publish deal deletion")
	}
	return nil
}
