package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/clientops/pkg/dunning"
)

type severityResult struct {
	DaysSinceFailure int                `json:"days_since_failure"`
	Severity         dunning.Severity   `json:"severity"`
	Thresholds       dunning.Thresholds `json:"thresholds"`
}

func newDunningCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dunning",
		Short: "Inspect dunning severity rules",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "severity DAYS",
		Short: "Classify the days since a payment failed",
		Args:  cobra.ExactArgs(1),
		RunE:  runDunningSeverity,
	})
	return cmd
}

func runDunningSeverity(cmd *cobra.Command, args []string) error {
	days, err := strconv.Atoi(args[0])
	if err != nil || days < 0 {
		return fmt.Errorf("days must be a non-negative integer, got %q", args[0])
	}

	rules, err := loadRules(cmd)
	if err != nil {
		return err
	}
	c, err := dunning.NewClassifier(rules.DunningThresholds)
	if err != nil {
		return err
	}

	return printJSON(cmd, severityResult{
		DaysSinceFailure: days,
		Severity:         c.SeverityOf(days),
		Thresholds:       c.Thresholds(),
	})
}
