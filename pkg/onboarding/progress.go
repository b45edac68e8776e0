package onboarding

import (
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
)

// Phase is derived from progress, never stored
type Phase string

const (
	PhaseGettingStarted Phase = "GETTING_STARTED"
	PhaseCoreSetup      Phase = "CORE_SETUP"
	PhaseOperations     Phase = "OPERATIONS"
	PhaseComplete       Phase = "COMPLETE"
)

// Phases lists the phases in order
var Phases = []Phase{PhaseGettingStarted, PhaseCoreSetup, PhaseOperations, PhaseComplete}

// ParsePhase converts a wire value into a Phase
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PhaseGettingStarted, PhaseCoreSetup, PhaseOperations, PhaseComplete:
		return p, nil
	}
	return "", fmt.Errorf("unknown onboarding phase %q", s)
}

// Severity classifies how long a client has been inactive
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Thresholds are inclusive lower bounds: 30% is still GETTING_STARTED, 31%
// is CORE_SETUP. Every phase in the system is derived from this table.
var phaseBands = lifecycle.MustBands(PhaseGettingStarted,
	lifecycle.Step[Phase]{Min: 31, Value: PhaseCoreSetup},
	lifecycle.Step[Phase]{Min: 61, Value: PhaseOperations},
	lifecycle.Step[Phase]{Min: 100, Value: PhaseComplete},
)

var stallBands = lifecycle.MustBands(SeverityNone,
	lifecycle.Step[Severity]{Min: 7, Value: SeverityWarning},
	lifecycle.Step[Severity]{Min: 14, Value: SeverityCritical},
)

// ProgressPercent returns total/max as a whole percentage in [0, 100],
// rounded half up. A non-positive max yields 0. Only a finished checklist
// reaches 100, so 199 of 200 points is 99.
func ProgressPercent(totalPoints, maxPoints int) int {
	if maxPoints <= 0 || totalPoints <= 0 {
		return 0
	}
	if totalPoints >= maxPoints {
		return 100
	}
	pct := int((int64(totalPoints)*200 + int64(maxPoints)) / (int64(maxPoints) * 2))
	if pct > 99 {
		pct = 99
	}
	return pct
}

// PhaseOf maps a progress percentage onto its phase
func PhaseOf(progressPercent int) Phase {
	return phaseBands.Classify(float64(clampPercent(progressPercent)))
}

// StallSeverityOf classifies a number of inactive days
func StallSeverityOf(stalledDays int) Severity {
	return stallBands.Classify(float64(stalledDays))
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Summary is a client's onboarding checklist state as returned by the service
type Summary struct {
	OrganizationID   string     `json:"organization_id"`
	OrganizationName string     `json:"organization_name,omitempty"`
	TotalPoints      int        `json:"total_points"`
	MaxPoints        int        `json:"max_points"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	LastActivityAt   *time.Time `json:"last_activity_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// Progress is a Summary with every derived field computed for one pass
type Progress struct {
	Summary
	ProgressPercent  int      `json:"progress_percent"`
	Phase            Phase    `json:"phase"`
	StalledDays      int      `json:"stalled_days"`
	StallSeverity    Severity `json:"stall_severity"`
	IsStalled        bool     `json:"is_stalled"`
	DaysInOnboarding int      `json:"days_in_onboarding"`
}

// Derive computes the derived fields. All day counts use the pass's single now.
// A client without recorded activity has zero stalled days.
func Derive(s Summary, pass lifecycle.Pass) Progress {
	pct := ProgressPercent(s.TotalPoints, s.MaxPoints)
	p := Progress{
		Summary:         s,
		ProgressPercent: pct,
		Phase:           PhaseOf(pct),
	}
	if s.LastActivityAt != nil {
		p.StalledDays = pass.DaysSince(*s.LastActivityAt)
	}
	p.StallSeverity = StallSeverityOf(p.StalledDays)
	p.IsStalled = p.StallSeverity != SeverityNone
	if s.StartedAt != nil {
		p.DaysInOnboarding = pass.DaysSince(*s.StartedAt)
	}
	return p
}

// DeriveAll derives every summary within the same pass
func DeriveAll(summaries []Summary, pass lifecycle.Pass) []Progress {
	out := make([]Progress, len(summaries))
	for i, s := range summaries {
		out[i] = Derive(s, pass)
	}
	return out
}
