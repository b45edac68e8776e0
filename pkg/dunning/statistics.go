package dunning

import (
	"sort"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/money"
)

// Statistics summarizes the full set of sequences
type Statistics struct {
	ActiveSequences    int `json:"active_sequences"`
	EscalatedCount     int `json:"escalated_count"`
	RecoveredThisMonth int `json:"recovered_this_month"`
	FailedThisMonth    int `json:"failed_this_month"`
	// RecoveryRate is a fraction in [0, 1]
	RecoveryRate float64 `json:"recovery_rate"`
	// AverageRecoveryDays is the mean of calendar days from failure to
	// recovery over sequences recovered this month
	AverageRecoveryDays float64          `json:"average_recovery_days"`
	RevenueAtRisk       []money.Amount   `json:"revenue_at_risk"`
	BySeverity          map[Severity]int `json:"by_severity"`
}

// ComputeStatistics derives the statistics from a snapshot within one pass.
// Recovery rate counts sequences resolved in the calendar month of the pass
// and is 0 when none were. Revenue at risk sums open sequences per currency.
// Severity counts cover open sequences only. Average recovery days is 0 when
// nothing was recovered this month.
func ComputeStatistics(seqs []Sequence, pass lifecycle.Pass, c *Classifier) Statistics {
	if c == nil {
		c = defaultClassifier
	}
	st := Statistics{BySeverity: make(map[Severity]int, len(Severities))}
	for _, s := range Severities {
		st.BySeverity[s] = 0
	}

	risk := money.Totals{}
	recoveryDays := 0
	for _, seq := range seqs {
		switch seq.Status {
		case StatusActive:
			st.ActiveSequences++
		case StatusEscalated:
			st.EscalatedCount++
		case StatusRecovered:
			if seq.ResolvedAt != nil && pass.SameMonth(*seq.ResolvedAt) {
				st.RecoveredThisMonth++
				recoveryDays += recoveryDaysOf(seq)
			}
		case StatusFailed:
			if seq.ResolvedAt != nil && pass.SameMonth(*seq.ResolvedAt) {
				st.FailedThisMonth++
			}
		}
		if seq.Status.IsOpen() {
			risk.Add(seq.InvoiceAmount)
			st.BySeverity[c.SeverityOf(seq.DaysSinceFailure(pass))]++
		}
	}

	if resolved := st.RecoveredThisMonth + st.FailedThisMonth; resolved > 0 {
		st.RecoveryRate = float64(st.RecoveredThisMonth) / float64(resolved)
	}
	if st.RecoveredThisMonth > 0 {
		st.AverageRecoveryDays = float64(recoveryDays) / float64(st.RecoveredThisMonth)
	}
	st.RevenueAtRisk = risk.Amounts()
	return st
}

func recoveryDaysOf(seq Sequence) int {
	days := lifecycle.DateOf(seq.FailedAt).DaysUntil(lifecycle.DateOf(*seq.ResolvedAt))
	if days < 0 {
		return 0
	}
	return days
}

// View is one sequence with everything the operator screen shows
type View struct {
	Sequence
	DaysSinceFailure int      `json:"days_since_failure"`
	Severity         Severity `json:"severity"`
	StepPercent      int      `json:"step_percent"`
	Actions          []Action `json:"actions"`
	Terminal         bool     `json:"terminal"`
}

// NewView derives the view of one sequence
func NewView(seq Sequence, pass lifecycle.Pass, c *Classifier) View {
	if c == nil {
		c = defaultClassifier
	}
	days := seq.DaysSinceFailure(pass)
	return View{
		Sequence:         seq,
		DaysSinceFailure: days,
		Severity:         c.SeverityOf(days),
		StepPercent:      seq.StepPercent(),
		Actions:          AvailableActions(seq),
		Terminal:         IsTerminal(seq.Status),
	}
}

// StatusAll disables the status filter
const StatusAll Status = "ALL"

// Views derives views for the sequences matching status (StatusAll or empty
// for every one), oldest failure first, ties broken by ID
func Views(seqs []Sequence, status Status, pass lifecycle.Pass, c *Classifier) []View {
	out := make([]View, 0, len(seqs))
	for _, seq := range seqs {
		if status != "" && status != StatusAll && seq.Status != status {
			continue
		}
		out = append(out, NewView(seq, pass, c))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysSinceFailure != out[j].DaysSinceFailure {
			return out[i].DaysSinceFailure > out[j].DaysSinceFailure
		}
		return out[i].ID < out[j].ID
	})
	return out
}
