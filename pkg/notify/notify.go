package notify

import (
	"context"
	"sync"
	"time"

	"github.com/platinummonkey/clientops/pkg/events"
	"github.com/platinummonkey/clientops/pkg/observability"
)

// Level is how a notice should be presented
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice reports the outcome of a user-triggered action
type Notice struct {
	Level     Level    `json:"level"`
	Action    string   `json:"action"`
	Message   string   `json:"message"`
	Succeeded []string `json:"succeeded,omitempty"`
	Failed    []string `json:"failed,omitempty"`
}

// Notifier reports outcomes to whoever triggered an action. It is injected
// into the components that need it; there is no package-level instance.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// LogNotifier writes notices to the structured log
type LogNotifier struct {
	logger *observability.Logger
}

// NewLogNotifier creates a notifier backed by the logger
func NewLogNotifier(logger *observability.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notice at a level matching its severity
func (n *LogNotifier) Notify(ctx context.Context, notice Notice) {
	log := n.logger
	if rid := observability.GetRequestID(ctx); rid != "" {
		log = log.WithField("request_id", rid)
	}
	log = log.WithFields(map[string]interface{}{
		"action":    notice.Action,
		"succeeded": len(notice.Succeeded),
		"failed":    len(notice.Failed),
	})
	switch notice.Level {
	case LevelError:
		log.Error(notice.Message)
	case LevelWarning:
		log.Warn(notice.Message)
	case LevelSuccess:
		log.Info(notice.Message)
	default:
		log.WithField("level", string(notice.Level)).Warn(notice.Message)
	}
}

// EventNotifier publishes batch outcomes so other services (the account
// manager inbox, CRM timeline) can pick them up
type EventNotifier struct {
	publisher events.Publisher
	logger    *observability.Logger
}

// NewEventNotifier creates a notifier that publishes OnboardingBatchCompleted events
func NewEventNotifier(p events.Publisher, logger *observability.Logger) *EventNotifier {
	return &EventNotifier{publisher: p, logger: logger}
}

// Notify publishes the notice; a publish failure is logged and dropped
func (n *EventNotifier) Notify(ctx context.Context, notice Notice) {
	e := events.New(events.OnboardingBatchCompleted, notice.Action, time.Now())
	e.Actor = observability.GetActor(ctx)
	e.Attributes = map[string]string{
		"level":   string(notice.Level),
		"message": notice.Message,
	}
	if err := n.publisher.Publish(ctx, e); err != nil {
		n.logger.WithError(err).Warn("failed to publish notice")
	}
}

// Multi fans a notice out to several notifiers in order
type Multi []Notifier

// Notify forwards the notice to every notifier
func (m Multi) Notify(ctx context.Context, notice Notice) {
	for _, n := range m {
		n.Notify(ctx, notice)
	}
}

// Recorder keeps notices in memory; the API exposes the latest ones and tests
// assert on them
type Recorder struct {
	mu      sync.Mutex
	limit   int
	notices []Notice
}

// NewRecorder keeps at most limit notices (0 means unbounded)
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Notify stores the notice, dropping the oldest beyond the limit
func (r *Recorder) Notify(_ context.Context, notice Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
	if r.limit > 0 && len(r.notices) > r.limit {
		r.notices = r.notices[len(r.notices)-r.limit:]
	}
}

// Notices returns the stored notices, oldest first
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}
