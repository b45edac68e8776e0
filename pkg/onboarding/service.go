package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/clientops/pkg/async"
	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/notify"
	"github.com/platinummonkey/clientops/pkg/observability"
)

var tracer = otel.Tracer("github.com/platinummonkey/clientops/pkg/onboarding")

// ErrNotInView is recorded for bulk items that are not visible under the
// filter the selection was made with
var ErrNotInView = errors.New("not in current view")

// Store is the onboarding side of the CRM service
type Store interface {
	ListOnboarding(ctx context.Context, cursor string) (lifecycle.Page[Summary], error)
	SendReminder(ctx context.Context, organizationID string) error
	ScheduleCall(ctx context.Context, organizationID string) error
	AssignManager(ctx context.Context, organizationID, assigneeID string) error
	// Export asks the service to produce an export for the given clients.
	// Rejected maps IDs the service could not include to a reason.
	Export(ctx context.Context, organizationIDs []string) (ExportReceipt, error)
}

// ExportReceipt identifies an export produced by the CRM service
type ExportReceipt struct {
	ExportID string            `json:"export_id"`
	Location string            `json:"location,omitempty"`
	Rejected map[string]string `json:"rejected,omitempty"`
}

// Monitor is the onboarding monitor for one filter
type Monitor struct {
	Overview Overview   `json:"overview"`
	Filter   Filter     `json:"filter"`
	Clients  []Progress `json:"clients"`
}

// Config tunes bulk execution
type Config struct {
	Workers     int
	ItemTimeout time.Duration
}

// DefaultConfig returns conservative bulk settings
func DefaultConfig() Config {
	return Config{Workers: 4, ItemTimeout: 15 * time.Second}
}

// Service runs onboarding actions against the CRM service and reports
// outcomes through the injected notifier
type Service struct {
	store    Store
	notifier notify.Notifier
	cfg      Config
	inflight *lifecycle.InFlight
	logger   *observability.Logger
	metrics  *observability.Metrics
	clock    lifecycle.Clock
}

// NewService creates an onboarding service
func NewService(store Store, notifier notify.Notifier, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = DefaultConfig().ItemTimeout
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &Service{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		inflight: lifecycle.NewInFlight(),
		logger:   logger,
		metrics:  metrics,
		clock:    lifecycle.SystemClock{},
	}
}

// SetClock replaces the clock (tests)
func (s *Service) SetClock(c lifecycle.Clock) {
	s.clock = c
}

// List loads and derives every client within one pass
func (s *Service) List(ctx context.Context) ([]Progress, lifecycle.Pass, error) {
	all, err := lifecycle.CollectAll(ctx, s.store.ListOnboarding)
	if err != nil {
		return nil, lifecycle.Pass{}, fmt.Errorf("failed to list onboarding clients: %w", err)
	}
	pass := lifecycle.NewPass(s.clock)
	return DeriveAll(all, pass), pass, nil
}

// Monitor builds the overview over all clients and the triaged list for f
func (s *Service) Monitor(ctx context.Context, f Filter) (Monitor, error) {
	items, pass, err := s.List(ctx)
	if err != nil {
		return Monitor{}, err
	}
	return Monitor{
		Overview: Summarize(items, pass),
		Filter:   f.normalized(),
		Clients:  Triage(items, f),
	}, nil
}

// SendReminder sends one reminder. Any other action for the same client
// while this one is outstanding fails with lifecycle.ErrInFlight.
func (s *Service) SendReminder(ctx context.Context, organizationID string) error {
	return s.single(ctx, "sendReminder", organizationID, s.store.SendReminder)
}

// ScheduleCall books an onboarding call for one client
func (s *Service) ScheduleCall(ctx context.Context, organizationID string) error {
	return s.single(ctx, "scheduleCall", organizationID, s.store.ScheduleCall)
}

func (s *Service) single(ctx context.Context, action, organizationID string, fn func(context.Context, string) error) error {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "onboarding."+action)
	defer span.End()
	span.SetAttributes(attribute.String("organization.id", organizationID))

	release, err := s.inflight.Acquire(organizationID)
	if err != nil {
		return err
	}
	defer release()
	defer s.metrics.ObserveAction("onboarding", action, start)

	if err := fn(ctx, organizationID); err != nil {
		span.RecordError(err)
		s.notifier.Notify(ctx, notify.Notice{
			Level:   notify.LevelError,
			Action:  action,
			Message: fmt.Sprintf("%s failed for %s", action, organizationID),
			Failed:  []string{organizationID},
		})
		return fmt.Errorf("failed to %s for %s: %w", action, organizationID, err)
	}
	s.notifier.Notify(ctx, notify.Notice{
		Level:     notify.LevelSuccess,
		Action:    action,
		Message:   fmt.Sprintf("%s done for %s", action, organizationID),
		Succeeded: []string{organizationID},
	})
	return nil
}

// BulkReminder sends reminders to the selected clients. Each client is
// independent; the result lists who got one and who did not.
func (s *Service) BulkReminder(ctx context.Context, f Filter, ids []string) (*lifecycle.BatchResult[string], error) {
	return s.bulk(ctx, "bulkReminder", f, ids, s.store.SendReminder)
}

// BulkAssign assigns an account manager to the selected clients
func (s *Service) BulkAssign(ctx context.Context, f Filter, ids []string, assigneeID string) (*lifecycle.BatchResult[string], error) {
	if assigneeID == "" {
		return nil, errors.New("assignee is required")
	}
	return s.bulk(ctx, "bulkAssign", f, ids, func(ctx context.Context, id string) error {
		return s.store.AssignManager(ctx, id, assigneeID)
	})
}

// Export requests an export of the selected clients. Clients the service
// rejected are reported as failed items; a transport failure fails every item.
func (s *Service) Export(ctx context.Context, f Filter, ids []string) (*lifecycle.BatchResult[string], ExportReceipt, error) {
	ctx, span := tracer.Start(ctx, "onboarding.export")
	defer span.End()

	kept, result, err := s.restrict(ctx, f, ids)
	if err != nil {
		return nil, ExportReceipt{}, err
	}

	var receipt ExportReceipt
	if len(kept) > 0 {
		receipt, err = s.store.Export(ctx, kept)
		for _, id := range kept {
			switch {
			case err != nil:
				result.Fail(id, err)
			case receipt.Rejected[id] != "":
				result.Fail(id, errors.New(receipt.Rejected[id]))
			default:
				result.Succeed(id)
			}
		}
	}

	s.report(ctx, "export", result)
	return result, receipt, nil
}

func (s *Service) bulk(ctx context.Context, action string, f Filter, ids []string,
	fn func(context.Context, string) error) (*lifecycle.BatchResult[string], error) {

	ctx, span := tracer.Start(ctx, "onboarding."+action)
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(ids)))

	kept, result, err := s.restrict(ctx, f, ids)
	if err != nil {
		return nil, err
	}

	done := async.Each(ctx, kept, s.cfg.Workers, s.cfg.ItemTimeout, s.guarded(fn))
	result.Succeeded = append(result.Succeeded, done.Succeeded...)
	result.Failed = append(result.Failed, done.Failed...)

	s.report(ctx, action, result)
	return result, nil
}

// guarded takes the same per-client key as single actions, so a bulk item
// for a busy client fails with lifecycle.ErrInFlight
func (s *Service) guarded(fn func(context.Context, string) error) func(context.Context, string) error {
	return func(ctx context.Context, organizationID string) error {
		release, err := s.inflight.Acquire(organizationID)
		if err != nil {
			return err
		}
		defer release()
		return fn(ctx, organizationID)
	}
}

// restrict loads the current view and splits ids into those still visible
// and those that are not (recorded as failed)
func (s *Service) restrict(ctx context.Context, f Filter, ids []string) ([]string, *lifecycle.BatchResult[string], error) {
	items, _, err := s.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	kept, dropped := Restrict(ids, Triage(items, f))

	result := lifecycle.NewBatchResult[string]()
	for _, id := range dropped {
		result.Fail(id, ErrNotInView)
	}
	return kept, result, nil
}

func (s *Service) report(ctx context.Context, action string, result *lifecycle.BatchResult[string]) {
	s.metrics.RecordBatch(action, len(result.Succeeded), len(result.Failed))

	notice := notify.Notice{
		Action:    action,
		Succeeded: result.Succeeded,
		Failed:    result.FailedIDs(),
	}
	total := len(result.Succeeded) + len(result.Failed)
	switch {
	case len(result.Failed) == 0:
		notice.Level = notify.LevelSuccess
		notice.Message = fmt.Sprintf("%s: %d of %d succeeded", action, len(result.Succeeded), total)
	case len(result.Succeeded) == 0:
		notice.Level = notify.LevelError
		notice.Message = fmt.Sprintf("%s: all %d failed", action, total)
	default:
		notice.Level = notify.LevelWarning
		notice.Message = fmt.Sprintf("%s: %d of %d failed", action, len(result.Failed), total)
	}
	s.notifier.Notify(ctx, notice)

	s.logger.WithFields(map[string]interface{}{
		"action":    action,
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
	}).Info("bulk onboarding action finished")
}
