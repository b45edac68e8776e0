package cli

import (
	"github.com/spf13/cobra"

	"github.com/platinummonkey/clientops/pkg/deals"
)

type stageCheck struct {
	From    deals.Stage   `json:"from"`
	To      deals.Stage   `json:"to"`
	Allowed bool          `json:"allowed"`
	Reason  string        `json:"reason,omitempty"`
	Next    []deals.Stage `json:"valid_next"`
}

func newStageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Inspect the deal stage machine",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check FROM TO",
		Short: "Report whether a deal may move from one stage to another",
		Args:  cobra.ExactArgs(2),
		RunE:  runStageCheck,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "next STAGE",
		Short: "List the stages a deal may move to",
		Args:  cobra.ExactArgs(1),
		RunE:  runStageNext,
	})
	return cmd
}

func runStageCheck(cmd *cobra.Command, args []string) error {
	from, err := deals.ParseStage(args[0])
	if err != nil {
		return err
	}
	to, err := deals.ParseStage(args[1])
	if err != nil {
		return err
	}

	out := stageCheck{From: from, To: to, Allowed: true, Next: deals.ValidTransitions(from)}
	if _, err := deals.AttemptTransition(deals.Deal{Stage: from}, to); err != nil {
		out.Allowed = false
		out.Reason = err.Error()
	}
	return printJSON(cmd, out)
}

func runStageNext(cmd *cobra.Command, args []string) error {
	stage, err := deals.ParseStage(args[0])
	if err != nil {
		return err
	}
	next := deals.ValidTransitions(stage)
	if next == nil {
		next = []deals.Stage{}
	}
	return printJSON(cmd, next)
}
