package dunning

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/clientops/pkg/events"
	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/observability"
)

type memoryStore struct {
	mu        sync.Mutex
	seqs      map[string]Sequence
	order     []string
	recorded  []Action
	conflict  bool
	recordErr error
}

func newMemoryStore(seqs ...Sequence) *memoryStore {
	s := &memoryStore{seqs: map[string]Sequence{}}
	for _, q := range seqs {
		q.Version = "1"
		s.seqs[q.ID] = q
		s.order = append(s.order, q.ID)
	}
	return s
}

func (m *memoryStore) GetSequence(_ context.Context, id string) (Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.seqs[id]
	if !ok {
		return Sequence{}, lifecycle.ErrNotFound
	}
	return q, nil
}

func (m *memoryStore) ListSequences(_ context.Context, cursor string) (lifecycle.Page[Sequence], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := start + 2
	if end > len(m.order) {
		end = len(m.order)
	}
	page := lifecycle.Page[Sequence]{Items: []Sequence{}}
	for _, id := range m.order[start:end] {
		page.Items = append(page.Items, m.seqs[id])
	}
	if end < len(m.order) {
		page.Next = strconv.Itoa(end)
	}
	return page, nil
}

func (m *memoryStore) RecordAction(_ context.Context, id string, a Action, o Outcome, version string) (Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return Sequence{}, m.recordErr
	}
	q := m.seqs[id]
	if m.conflict {
		// someone else resolved it first
		q.Status = StatusRecovered
		q.Version = "9"
		m.seqs[id] = q
		return Sequence{}, lifecycle.ErrConflict
	}
	if q.Version != version {
		return Sequence{}, lifecycle.ErrConflict
	}
	m.recorded = append(m.recorded, a)
	switch {
	case a == ActionEscalate:
		q.Status = StatusEscalated
	case a == ActionRetryPayment && o.Paid:
		q.Status = StatusRecovered
		resolved := testNow
		q.ResolvedAt = &resolved
	default:
		if q.CurrentStep < q.TotalSteps {
			q.CurrentStep++
		}
	}
	v, _ := strconv.Atoi(q.Version)
	q.Version = strconv.Itoa(v + 1)
	m.seqs[id] = q
	return q, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	calls   int
	paid    bool
	link    string
	err     error
	release chan struct{}
}

func (g *fakeGateway) RetryPayment(context.Context, string) (bool, error) {
	if g.release != nil {
		<-g.release
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.paid, g.err
}

func (g *fakeGateway) PaymentLink(context.Context, string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.link, g.err
}

func newTestService(store Store, gw Gateway) (*Service, *events.MemoryPublisher) {
	pub := events.NewMemoryPublisher()
	svc := NewService(store, gw,
		WithPublisher(pub),
		WithClock(lifecycle.FixedClock(testNow)),
	)
	return svc, pub
}

func TestService_Escalate(t *testing.T) {
	store := newMemoryStore(seq("s1", StatusActive, 9))
	gw := &fakeGateway{}
	svc, pub := newTestService(store, gw)

	res, err := svc.Escalate(observability.WithActor(context.Background(), "am-1"), "s1", "")
	require.NoError(t, err)
	assert.Equal(t, StatusEscalated, res.Sequence.Status)
	assert.Equal(t, 0, gw.calls, "escalation does not touch the payment gateway")

	evs := pub.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.DunningActionTaken, evs[0].Type)
	assert.Equal(t, "ACTIVE", evs[0].From)
	assert.Equal(t, "ESCALATED", evs[0].To)
	assert.Equal(t, "am-1", evs[0].Actor)
	assert.Equal(t, "escalate", evs[0].Attributes["action"])
}

func TestService_RetryPayment_Recovered(t *testing.T) {
	store := newMemoryStore(seq("s1", StatusActive, 2))
	svc, _ := newTestService(store, &fakeGateway{paid: true})

	res, err := svc.RetryPayment(context.Background(), "s1", "1")
	require.NoError(t, err)
	assert.True(t, res.Outcome.Paid)
	assert.Equal(t, StatusRecovered, res.Sequence.Status)
}

func TestService_RetryPayment_Declined(t *testing.T) {
	store := newMemoryStore(seq("s1", StatusActive, 2))
	svc, _ := newTestService(store, &fakeGateway{})

	res, err := svc.RetryPayment(context.Background(), "s1", "")
	require.NoError(t, err)
	assert.False(t, res.Outcome.Paid)
	assert.Equal(t, StatusActive, res.Sequence.Status)
	assert.Equal(t, 2, res.Sequence.CurrentStep)
}

func TestService_SendPaymentLink(t *testing.T) {
	store := newMemoryStore(seq("s1", StatusActive, 2))
	svc, _ := newTestService(store, &fakeGateway{link: "https://pay.example.com/x"})

	res, err := svc.SendPaymentLink(context.Background(), "s1", "")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/x", res.Outcome.PaymentLink)
	assert.Equal(t, []Action{ActionSendPaymentLink}, store.recorded)
}

func TestService_NotActive_NoExternalCalls(t *testing.T) {
	for _, status := range []Status{StatusEscalated, StatusRecovered, StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			store := newMemoryStore(seq("s1", status, 5))
			gw := &fakeGateway{paid: true}
			svc, pub := newTestService(store, gw)

			for _, a := range Actions {
				res, err := svc.Act(context.Background(), "s1", a, "")
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrActionNotApplicable)
				assert.Equal(t, status, res.Sequence.Status)
			}
			assert.Equal(t, 0, gw.calls)
			assert.Empty(t, store.recorded)
			assert.Empty(t, pub.Events())
		})
	}
}

func TestService_UnknownAction(t *testing.T) {
	svc, _ := newTestService(newMemoryStore(seq("s1", StatusActive, 1)), &fakeGateway{})

	_, err := svc.Act(context.Background(), "s1", Action("refund"), "")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestService_GatewayFailure(t *testing.T) {
	store := newMemoryStore(seq("s1", StatusActive, 1))
	svc, pub := newTestService(store, &fakeGateway{err: lifecycle.ErrUnavailable})

	res, err := svc.RetryPayment(context.Background(), "s1", "")
	assert.ErrorIs(t, err, lifecycle.ErrUnavailable)
	assert.Equal(t, StatusActive, res.Sequence.Status)
	assert.Empty(t, store.recorded)
	assert.Empty(t, pub.Events())
}

func TestService_Conflict_ReturnsLatest(t *testing.T) {
	store := newMemoryStore(seq("s1", StatusActive, 1))
	store.conflict = true
	svc, _ := newTestService(store, &fakeGateway{})

	res, err := svc.Escalate(context.Background(), "s1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, lifecycle.ErrConflict)
	assert.Equal(t, StatusRecovered, res.Sequence.Status)
	assert.Equal(t, "9", res.Sequence.Version)
}

func TestService_StaleVersion(t *testing.T) {
	store := newMemoryStore(seq("s1", StatusActive, 1))
	svc, _ := newTestService(store, &fakeGateway{})

	_, err := svc.Escalate(context.Background(), "s1", "0")
	assert.ErrorIs(t, err, lifecycle.ErrConflict)
}

func TestService_NotFound(t *testing.T) {
	svc, _ := newTestService(newMemoryStore(), &fakeGateway{})

	_, err := svc.Escalate(context.Background(), "missing", "")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	_, err = svc.View(context.Background(), "missing")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestService_RecordFailure(t *testing.T) {
	store := newMemoryStore(seq("s1", StatusActive, 1))
	store.recordErr = errors.New("billing db down")
	svc, _ := newTestService(store, &fakeGateway{})

	res, err := svc.Escalate(context.Background(), "s1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "billing db down")
	assert.Equal(t, StatusActive, res.Sequence.Status)
}

func TestService_InFlight(t *testing.T) {
	store := newMemoryStore(seq("s1", StatusActive, 1))
	gw := &fakeGateway{release: make(chan struct{})}
	svc, _ := newTestService(store, gw)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RetryPayment(context.Background(), "s1", "")
		done <- err
	}()
	require.Eventually(t, func() bool { return svc.inflight.Busy("s1") }, time.Second, 5*time.Millisecond)

	_, err := svc.Escalate(context.Background(), "s1", "")
	assert.ErrorIs(t, err, lifecycle.ErrInFlight)

	close(gw.release)
	require.NoError(t, <-done)
}

func TestService_StatisticsAndViews(t *testing.T) {
	store := newMemoryStore(
		seq("s1", StatusActive, 1),
		seq("s2", StatusEscalated, 8),
		seq("s3", StatusFailed, 30),
	)
	svc, _ := newTestService(store, &fakeGateway{})

	st, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.ActiveSequences)
	assert.Equal(t, 1, st.EscalatedCount)

	views, err := svc.Views(context.Background(), StatusEscalated)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, SeverityHigh, views[0].Severity)

	strict, err := NewClassifier(Thresholds{Moderate: 1, High: 2, Critical: 8})
	require.NoError(t, err)
	svc.SetClassifier(strict)
	v, err := svc.View(context.Background(), "s2")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, v.Severity)
}

func TestService_SetClassifierWhileReading(t *testing.T) {
	store := newMemoryStore(seq("s1", StatusActive, 1), seq("s2", StatusEscalated, 8))
	svc, _ := newTestService(store, &fakeGateway{})

	strict, err := NewClassifier(Thresholds{Moderate: 1, High: 2, Critical: 8})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				svc.SetClassifier(strict)
			} else {
				svc.SetClassifier(DefaultClassifier())
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, err := svc.Statistics(context.Background())
			assert.NoError(t, err)
			_, err = svc.View(context.Background(), "s2")
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	svc.SetClassifier(strict)
	v, err := svc.View(context.Background(), "s2")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, v.Severity)
}
