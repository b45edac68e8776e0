package onboarding

import "github.com/platinummonkey/clientops/pkg/lifecycle"

// Overview is the headline of the onboarding monitor
type Overview struct {
	TotalInOnboarding int              `json:"total_in_onboarding"`
	StalledCount      int              `json:"stalled_count"`
	CriticalCount     int              `json:"critical_count"`
	CompletedThisWeek int              `json:"completed_this_week"`
	AverageProgress   float64          `json:"average_progress"`
	ByPhase           map[Phase]int    `json:"by_phase"`
	BySeverity        map[Severity]int `json:"by_severity"`
}

// Summarize builds the overview. Clients that reached COMPLETE are not "in
// onboarding" but count toward CompletedThisWeek when they finished within
// the last seven calendar days. Average progress is 0 for an empty set.
func Summarize(items []Progress, pass lifecycle.Pass) Overview {
	o := Overview{
		ByPhase:    make(map[Phase]int, len(Phases)),
		BySeverity: map[Severity]int{SeverityNone: 0, SeverityWarning: 0, SeverityCritical: 0},
	}
	for _, p := range Phases {
		o.ByPhase[p] = 0
	}

	total := 0
	for _, p := range items {
		o.ByPhase[p.Phase]++
		if p.Phase == PhaseComplete {
			if p.CompletedAt != nil && pass.DaysSince(*p.CompletedAt) < 7 {
				o.CompletedThisWeek++
			}
			continue
		}
		o.TotalInOnboarding++
		total += p.ProgressPercent
		o.BySeverity[p.StallSeverity]++
		if p.IsStalled {
			o.StalledCount++
		}
		if p.StallSeverity == SeverityCritical {
			o.CriticalCount++
		}
	}
	if o.TotalInOnboarding > 0 {
		o.AverageProgress = float64(total) / float64(o.TotalInOnboarding)
	}
	return o
}
