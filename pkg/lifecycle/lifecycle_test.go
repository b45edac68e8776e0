package lifecycle

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type light string

const (
	red    light = "red"
	green  light = "green"
	yellow light = "yellow"
)

func testTable() Table[light] {
	return NewTable(map[light][]light{
		red:    {green},
		green:  {yellow},
		yellow: {red},
	})
}

func TestTable_Allows(t *testing.T) {
	tbl := testTable()

	assert.True(t, tbl.Allows(red, green))
	assert.False(t, tbl.Allows(red, yellow))
	assert.False(t, tbl.Allows(red, red))
	assert.Equal(t, []light{green}, tbl.Next(red))
	assert.False(t, tbl.IsTerminal(red))
	assert.True(t, tbl.IsTerminal(light("off")))
}

func TestTable_NextReturnsCopy(t *testing.T) {
	tbl := testTable()
	next := tbl.Next(red)
	next[0] = yellow

	assert.Equal(t, []light{green}, tbl.Next(red))
}

func TestTable_Check(t *testing.T) {
	tbl := testTable()

	require.NoError(t, tbl.Check("light", red, green))
	require.NoError(t, tbl.Check("light", red, red), "same-state is a no-op")

	err := tbl.Check("light", red, yellow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "red", te.From)
	assert.Equal(t, "yellow", te.To)
	assert.Equal(t, "light: cannot move from red to yellow", err.Error())
}

func TestBands_Classify(t *testing.T) {
	b := MustBands("none",
		Step[string]{Min: 14, Value: "critical"},
		Step[string]{Min: 7, Value: "warning"},
	)

	tests := []struct {
		v    float64
		want string
	}{
		{0, "none"},
		{6, "none"},
		{7, "warning"},
		{10, "warning"},
		{13, "warning"},
		{14, "critical"},
		{400, "critical"},
		{-1, "none"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Classify(tt.v), "value %v", tt.v)
	}
}

func TestBands_DuplicateThreshold(t *testing.T) {
	_, err := NewBands(0, Step[int]{Min: 5, Value: 1}, Step[int]{Min: 5, Value: 2})
	assert.Error(t, err)

	assert.Panics(t, func() {
		MustBands(0, Step[int]{Min: 1, Value: 1}, Step[int]{Min: 1, Value: 2})
	})
}

func TestBands_StepsAscending(t *testing.T) {
	b := MustBands(0,
		Step[int]{Min: 80, Value: 3},
		Step[int]{Min: 40, Value: 1},
		Step[int]{Min: 60, Value: 2},
	)
	steps := b.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, 40.0, steps[0].Min)
	assert.Equal(t, 60.0, steps[1].Min)
	assert.Equal(t, 80.0, steps[2].Min)
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", d.String())

	prev, err := ParseDate("2026-02-27")
	require.NoError(t, err)
	assert.Equal(t, 2, prev.DaysUntil(d))
	assert.Equal(t, -2, d.DaysUntil(prev))
	assert.True(t, prev.Before(d))
	assert.False(t, d.IsZero())
	assert.True(t, Date{}.IsZero())

	_, err = ParseDate("03/01/2026")
	assert.Error(t, err)
}

func TestDate_JSON(t *testing.T) {
	d := Date{Year: 2026, Month: time.July, Day: 4}
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-07-04"`, string(data))

	var decoded Date
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, d, decoded)

	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &decoded))
}

func TestPass_DaysSinceUsesCalendarDates(t *testing.T) {
	now := time.Date(2026, 5, 20, 0, 30, 0, 0, time.UTC)
	p := NewPass(FixedClock(now))

	// 23:59 the previous day is one calendar day ago even though under an hour elapsed
	assert.Equal(t, 1, p.DaysSince(time.Date(2026, 5, 19, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, 20, p.DaysSince(now.AddDate(0, 0, -20)))
	assert.Equal(t, 0, p.DaysSince(now.Add(48*time.Hour)), "future activity clamps to zero")
}

func TestPass_CapturesNowOnce(t *testing.T) {
	calls := 0
	clock := clockFunc(func() time.Time {
		calls++
		return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(calls) * 24 * time.Hour)
	})

	p := NewPass(clock)
	first := p.DaysSince(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	second := p.DaysSince(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestPass_SameMonth(t *testing.T) {
	p := PassAt(time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC))

	assert.True(t, p.SameMonth(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.SameMonth(time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, p.SameMonth(time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)))
}

type clockFunc func() time.Time

func (f clockFunc) Now() time.Time { return f() }

func TestInFlight(t *testing.T) {
	g := NewInFlight()

	release, err := g.Acquire("deal-1")
	require.NoError(t, err)
	assert.True(t, g.Busy("deal-1"))

	_, err = g.Acquire("deal-1")
	assert.ErrorIs(t, err, ErrInFlight)

	other, err := g.Acquire("deal-2")
	require.NoError(t, err)
	other()

	release()
	release()
	assert.False(t, g.Busy("deal-1"))

	again, err := g.Acquire("deal-1")
	require.NoError(t, err)
	again()
}

func TestInFlight_Concurrent(t *testing.T) {
	g := NewInFlight()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	start := make(chan struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := g.Acquire("seq-1"); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, granted)
}

func TestScope(t *testing.T) {
	s := NewScope()
	first := s.Begin()
	assert.True(t, first.Live())

	second := s.Begin()
	assert.False(t, first.Live(), "superseded by a newer request")
	assert.True(t, second.Live())

	var applied []string
	assert.False(t, Deliver(first, "stale", func(v string) { applied = append(applied, v) }))
	assert.True(t, Deliver(second, "fresh", func(v string) { applied = append(applied, v) }))

	s.Close()
	assert.False(t, second.Live())
	assert.False(t, Deliver(second, "late", func(v string) { applied = append(applied, v) }))
	assert.Equal(t, []string{"fresh"}, applied)

	assert.False(t, Ticket{}.Live())
}

func TestBatchResult(t *testing.T) {
	r := NewBatchResult[string]()
	r.Succeed("A")
	require.NoError(t, r.Err())

	r.Fail("B", errors.New("mailbox full"))
	assert.Equal(t, []string{"A"}, r.Succeeded)
	assert.Equal(t, []string{"B"}, r.FailedIDs())
	assert.Equal(t, "mailbox full", r.Failed[0].Error)

	err := r.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialBatchFailure)
	assert.True(t, Changed(err), "A was still delivered")

	var partial *PartialBatchError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Succeeded)
	assert.Equal(t, 1, partial.Failed)
	assert.Equal(t, "1 of 2 items failed: mailbox full", err.Error())
}

func TestBatchResult_EmptyListsMarshalAsArrays(t *testing.T) {
	data, err := json.Marshal(NewBatchResult[string]())
	require.NoError(t, err)
	assert.JSONEq(t, `{"succeeded":[],"failed":[]}`, string(data))
}

func TestChanged(t *testing.T) {
	assert.True(t, Changed(nil))
	assert.False(t, Changed(ErrConflict))
	assert.False(t, Changed(&TransitionError{Entity: "deal", From: "LEAD", To: "WON"}))
	assert.False(t, Changed(&PartialBatchError{Succeeded: 0, Failed: 2}))
}
