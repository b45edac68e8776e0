package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/clientops/pkg/events"
	"github.com/platinummonkey/clientops/pkg/observability"
)

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(observability.NewLogger(observability.InfoLevel, &buf))

	ctx := observability.WithRequestID(context.Background(), "req-1")
	n.Notify(ctx, Notice{
		Level:     LevelWarning,
		Action:    "bulkReminder",
		Message:   "1 of 2 reminders failed",
		Succeeded: []string{"A"},
		Failed:    []string{"B"},
	})

	out := buf.String()
	assert.Contains(t, out, `"level":"warning"`)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"failed":1`)
	assert.Contains(t, out, "1 of 2 reminders failed")
}

func TestRecorder_Limit(t *testing.T) {
	r := NewRecorder(2)
	for _, msg := range []string{"one", "two", "three"} {
		r.Notify(context.Background(), Notice{Level: LevelSuccess, Message: msg})
	}

	got := r.Notices()
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Message)
	assert.Equal(t, "three", got[1].Message)
}

func TestMulti(t *testing.T) {
	a, b := NewRecorder(0), NewRecorder(0)
	Multi{a, b}.Notify(context.Background(), Notice{Message: "hi"})

	assert.Len(t, a.Notices(), 1)
	assert.Len(t, b.Notices(), 1)
}

type failingPublisher struct{ events.NopPublisher }

func (failingPublisher) Publish(context.Context, ...events.Event) error {
	return errors.New("broker down")
}

func TestEventNotifier(t *testing.T) {
	pub := events.NewMemoryPublisher()
	n := NewEventNotifier(pub, observability.NopLogger())

	ctx := observability.WithActor(context.Background(), "am-7")
	n.Notify(ctx, Notice{Level: LevelSuccess, Action: "export", Message: "3 exported"})

	got := pub.Events()
	require.Len(t, got, 1)
	assert.Equal(t, events.OnboardingBatchCompleted, got[0].Type)
	assert.Equal(t, "am-7", got[0].Actor)
	assert.Equal(t, "3 exported", got[0].Attributes["message"])

	var buf bytes.Buffer
	failing := NewEventNotifier(failingPublisher{}, observability.NewLogger(observability.InfoLevel, &buf))
	failing.Notify(ctx, Notice{Message: "x"})
	assert.Contains(t, buf.String(), "broker down")
}
