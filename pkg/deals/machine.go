package deals

import (
	"fmt"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
)

const entity = "deal"

// transitions is the only source of legal stage moves. Every open stage can
// be lost; WON can only churn; LOST and CHURNED are final.
var transitions = lifecycle.NewTable(map[Stage][]Stage{
	StageLead:          {StageContacted, StageLost},
	StageContacted:     {StageDemoScheduled, StageProposalSent, StageLost},
	StageDemoScheduled: {StageDemoDone, StageLost},
	StageDemoDone:      {StageProposalSent, StageLost},
	StageProposalSent:  {StageNegotiation, StageLost},
	StageNegotiation:   {StageWon, StageLost},
	StageWon:           {StageChurned},
	StageLost:          {},
	StageChurned:       {},
})

// ValidTransitions returns the legal next stages from s
func ValidTransitions(s Stage) []Stage {
	return transitions.Next(s)
}

// CanTransition reports whether from -> to is a legal move
func CanTransition(from, to Stage) bool {
	return transitions.Allows(from, to)
}

// AttemptTransition moves the deal to target if the table allows it. A
// same-stage target succeeds without change. On failure the input deal is
// returned as is and the error wraps lifecycle.ErrInvalidTransition.
func AttemptTransition(d Deal, target Stage) (Deal, error) {
	if !target.Valid() {
		return d, &lifecycle.TransitionError{
			Entity: entity,
			From:   string(d.Stage),
			To:     string(target),
			Reason: "unknown stage",
		}
	}
	if err := transitions.Check(entity, d.Stage, target); err != nil {
		return d, err
	}
	next := d
	next.Stage = target
	return next, nil
}

// Action is a named, explicit pipeline move
type Action string

const (
	ActionQualify          Action = "qualify"
	ActionScheduleDemo     Action = "scheduleDemo"
	ActionCompleteDemo     Action = "completeDemo"
	ActionSendProposal     Action = "sendProposal"
	ActionStartNegotiation Action = "startNegotiation"
	ActionWin              Action = "win"
	ActionLose             Action = "lose"
	ActionChurn            Action = "churn"
)

// Actions lists every action in pipeline order
var Actions = []Action{
	ActionQualify,
	ActionScheduleDemo,
	ActionCompleteDemo,
	ActionSendProposal,
	ActionStartNegotiation,
	ActionWin,
	ActionLose,
	ActionChurn,
}

// TargetOf returns the stage an action moves a deal into
func TargetOf(a Action) (Stage, error) {
	switch a {
	case ActionQualify:
		return StageContacted, nil
	case ActionScheduleDemo:
		return StageDemoScheduled, nil
	case ActionCompleteDemo:
		return StageDemoDone, nil
	case ActionSendProposal:
		return StageProposalSent, nil
	case ActionStartNegotiation:
		return StageNegotiation, nil
	case ActionWin:
		return StageWon, nil
	case ActionLose:
		return StageLost, nil
	case ActionChurn:
		return StageChurned, nil
	}
	return "", fmt.Errorf("unknown deal action %q", a)
}

// AvailableActions returns the actions that are legal for the deal right now
func AvailableActions(d Deal) []Action {
	var out []Action
	for _, a := range Actions {
		target, err := TargetOf(a)
		if err != nil {
			continue
		}
		if CanTransition(d.Stage, target) {
			out = append(out, a)
		}
	}
	return out
}
