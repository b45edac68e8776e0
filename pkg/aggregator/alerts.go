package aggregator

import (
	"fmt"

	"github.com/platinummonkey/clientops/pkg/dunning"
	"github.com/platinummonkey/clientops/pkg/notify"
)

// AlertLimits are the dashboard levels that raise an alert. A zero limit
// disables its check.
type AlertLimits struct {
	// CriticalStalls is the number of critically stalled onboardings tolerated
	CriticalStalls int `yaml:"critical_stalls" json:"critical_stalls"`
	// CriticalDunning is the number of CRITICAL open sequences tolerated
	CriticalDunning int `yaml:"critical_dunning" json:"critical_dunning"`
	// AtRiskShare is the tolerated fraction of clients at HIGH or CRITICAL risk
	AtRiskShare float64 `yaml:"at_risk_share" json:"at_risk_share"`
	// MinRecoveryRate raises an alert when the monthly recovery rate drops below it
	MinRecoveryRate float64 `yaml:"min_recovery_rate" json:"min_recovery_rate"`
}

// DefaultAlertLimits returns the limits used when none are configured
func DefaultAlertLimits() AlertLimits {
	return AlertLimits{
		CriticalStalls:  5,
		CriticalDunning: 3,
		AtRiskShare:     0.25,
		MinRecoveryRate: 0.5,
	}
}

// Alert is one dashboard level outside its limit
type Alert struct {
	Kind     string       `json:"kind"`
	Severity notify.Level `json:"severity"`
	Message  string       `json:"message"`
}

// Notice converts the alert for a notifier
func (a Alert) Notice() notify.Notice {
	return notify.Notice{Level: a.Severity, Action: "dashboardAlert:" + a.Kind, Message: a.Message}
}

// Evaluate checks a dashboard against limits
func Evaluate(d Dashboard, l AlertLimits) []Alert {
	var alerts []Alert

	if l.CriticalStalls > 0 && d.Onboarding.CriticalCount > l.CriticalStalls {
		alerts = append(alerts, Alert{
			Kind:     "onboarding",
			Severity: notify.LevelWarning,
			Message: fmt.Sprintf("%d onboardings critically stalled (limit %d)",
				d.Onboarding.CriticalCount, l.CriticalStalls),
		})
	}

	if critical := d.Dunning.BySeverity[dunning.SeverityCritical]; l.CriticalDunning > 0 && critical > l.CriticalDunning {
		alerts = append(alerts, Alert{
			Kind:     "dunning",
			Severity: notify.LevelError,
			Message:  fmt.Sprintf("%d dunning sequences past %d days (limit %d)", critical, d.Thresholds.Critical, l.CriticalDunning),
		})
	}

	resolved := d.Dunning.RecoveredThisMonth + d.Dunning.FailedThisMonth
	if l.MinRecoveryRate > 0 && resolved > 0 && d.Dunning.RecoveryRate < l.MinRecoveryRate {
		alerts = append(alerts, Alert{
			Kind:     "recovery",
			Severity: notify.LevelWarning,
			Message: fmt.Sprintf("recovery rate %.0f%% below %.0f%%",
				d.Dunning.RecoveryRate*100, l.MinRecoveryRate*100),
		})
	}

	if l.AtRiskShare > 0 && d.Health.Total > 0 {
		share := float64(d.Health.AtRisk) / float64(d.Health.Total)
		if share > l.AtRiskShare {
			alerts = append(alerts, Alert{
				Kind:     "health",
				Severity: notify.LevelWarning,
				Message: fmt.Sprintf("%d of %d clients at risk (%.0f%%)",
					d.Health.AtRisk, d.Health.Total, share*100),
			})
		}
	}

	return alerts
}
