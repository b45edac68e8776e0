package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies what happened
type Type string

const (
	// StageChanged is emitted after the platform acknowledged a deal transition
	StageChanged Type = "deal.stage_changed"
	// DealDeleted is emitted after a LEAD or LOST deal was deleted
	DealDeleted Type = "deal.deleted"
	// DunningActionTaken is emitted after a guarded dunning action succeeded
	DunningActionTaken Type = "dunning.action_taken"
	// OnboardingBatchCompleted carries the per-item outcome of a bulk onboarding action
	OnboardingBatchCompleted Type = "onboarding.batch_completed"
	// DashboardRefreshed is emitted by the aggregator after each successful pass
	DashboardRefreshed Type = "dashboard.refreshed"
)

// Event is one lifecycle notification published to downstream consumers
type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	EntityID   string            `json:"entity_id"`
	From       string            `json:"from,omitempty"`
	To         string            `json:"to,omitempty"`
	Actor      string            `json:"actor,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// New creates an event with a fresh ID
func New(t Type, entityID string, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		EntityID:   entityID,
		OccurredAt: at.UTC(),
	}
}

// Publisher delivers events. Publishing is best effort: callers log failures
// but never roll back an acknowledged transition because of them.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// NopPublisher drops every event
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(context.Context, ...Event) error { return nil }

// Close does nothing
func (NopPublisher) Close() error { return nil }

// MemoryPublisher keeps events in memory. Used when no broker is configured
// and in tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher creates an empty in-memory publisher
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish appends the events
func (p *MemoryPublisher) Publish(_ context.Context, events ...Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

// Events returns a copy of everything published so far
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Close does nothing
func (p *MemoryPublisher) Close() error { return nil }
