package cli

import (
	"github.com/spf13/cobra"

	"github.com/platinummonkey/clientops/pkg/health"
)

type scoreResult struct {
	health.ClientHealth
	Weights health.Weights `json:"weights"`
}

func newHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Inspect client health scoring",
	}

	score := &cobra.Command{
		Use:   "score",
		Short: "Compute the overall score, risk and trend from sub-scores",
		Args:  cobra.NoArgs,
		RunE:  runHealthScore,
	}
	score.Flags().Int("usage", 0, "Usage sub-score (0-100)")
	score.Flags().Int("payment", 0, "Payment sub-score (0-100)")
	score.Flags().Int("subscription", 0, "Subscription sub-score (0-100)")
	score.Flags().Int("change", 0, "Score change since the previous calculation")
	cmd.AddCommand(score)

	return cmd
}

func runHealthScore(cmd *cobra.Command, _ []string) error {
	rules, err := loadRules(cmd)
	if err != nil {
		return err
	}
	scorer, err := health.NewScorer(rules.HealthWeights)
	if err != nil {
		return err
	}

	var s health.Scores
	s.OrganizationID = "cli"
	s.Usage, _ = cmd.Flags().GetInt("usage")
	s.Payment, _ = cmd.Flags().GetInt("payment")
	s.Subscription, _ = cmd.Flags().GetInt("subscription")
	s.ScoreChange, _ = cmd.Flags().GetInt("change")

	return printJSON(cmd, scoreResult{ClientHealth: scorer.Score(s), Weights: scorer.Weights()})
}
