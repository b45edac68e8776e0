package lifecycle

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar date with no time-of-day component
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// DateOf returns the UTC calendar date of t
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the date
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether the date is unset
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Before reports whether d is strictly before other
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// DaysUntil returns the number of calendar days from d to other (negative if other is earlier)
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

func (d Date) String() string {
	return d.Time().Format(dateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD"
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant
type FixedClock time.Time

// Now returns the fixed instant
func (c FixedClock) Now() time.Time { return time.Time(c) }

// Pass is one computation pass. Now is captured exactly once; every day count
// derived within the pass uses it, so values cannot flicker across a boundary.
type Pass struct {
	Now   time.Time
	Today Date
}

// NewPass captures the clock once
func NewPass(clock Clock) Pass {
	if clock == nil {
		clock = SystemClock{}
	}
	now := clock.Now()
	return Pass{Now: now, Today: DateOf(now)}
}

// PassAt builds a pass for a known instant
func PassAt(now time.Time) Pass {
	return Pass{Now: now, Today: DateOf(now)}
}

// DaysSince returns whole calendar days from t to the pass date, never negative
func (p Pass) DaysSince(t time.Time) int {
	days := DateOf(t).DaysUntil(p.Today)
	if days < 0 {
		return 0
	}
	return days
}

// SameMonth reports whether t falls in the calendar month of the pass
func (p Pass) SameMonth(t time.Time) bool {
	d := DateOf(t)
	return d.Year == p.Today.Year && d.Month == p.Today.Month
}
