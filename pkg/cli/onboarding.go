package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/clientops/pkg/onboarding"
)

type phaseResult struct {
	ProgressPercent int                 `json:"progress_percent"`
	Phase           onboarding.Phase    `json:"phase"`
	StalledDays     int                 `json:"stalled_days"`
	StallSeverity   onboarding.Severity `json:"stall_severity"`
	IsStalled       bool                `json:"is_stalled"`
}

func newOnboardingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboarding",
		Short: "Inspect onboarding progress rules",
	}

	phase := &cobra.Command{
		Use:   "phase",
		Short: "Derive progress, phase and stall severity from points",
		Args:  cobra.NoArgs,
		RunE:  runOnboardingPhase,
	}
	phase.Flags().Int("points", 0, "Points earned")
	phase.Flags().Int("max", 0, "Points available")
	phase.Flags().Int("stalled-days", 0, "Calendar days since the last activity")
	cmd.AddCommand(phase)

	return cmd
}

func runOnboardingPhase(cmd *cobra.Command, _ []string) error {
	points, _ := cmd.Flags().GetInt("points")
	max, _ := cmd.Flags().GetInt("max")
	stalled, _ := cmd.Flags().GetInt("stalled-days")
	if stalled < 0 {
		return errors.New("stalled-days cannot be negative")
	}

	pct := onboarding.ProgressPercent(points, max)
	severity := onboarding.StallSeverityOf(stalled)
	return printJSON(cmd, phaseResult{
		ProgressPercent: pct,
		Phase:           onboarding.PhaseOf(pct),
		StalledDays:     stalled,
		StallSeverity:   severity,
		IsStalled:       severity != onboarding.SeverityNone,
	})
}
