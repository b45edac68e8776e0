package deals

import (
	"errors"
	"fmt"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
)

// PendingMove is a validated transition waiting for the CRM service to
// acknowledge it. Until then the deal keeps its current stage.
type PendingMove struct {
	DealID  string `json:"deal_id"`
	From    Stage  `json:"from"`
	To      Stage  `json:"to"`
	Version string `json:"version"`
}

// NoOp reports whether the move keeps the deal where it is
func (m PendingMove) NoOp() bool {
	return m.From == m.To
}

// State is what a view of one deal holds: the last acknowledged deal and at
// most one outstanding move.
type State struct {
	Deal    Deal
	Pending *PendingMove
}

// Event is an input to Reduce. The set of events is closed.
type Event interface {
	dealEvent()
}

// Requested asks to move the deal to Target (explicit action or board drop)
type Requested struct {
	Target Stage
}

// Acknowledged carries the deal as stored by the service after a move
type Acknowledged struct {
	Deal Deal
}

// Failed reports that the outstanding move did not happen. Latest, when set,
// is the refetched server copy after a conflict.
type Failed struct {
	Err    error
	Latest *Deal
}

func (Requested) dealEvent()    {}
func (Acknowledged) dealEvent() {}
func (Failed) dealEvent()       {}

// ErrNoPendingMove is returned for an acknowledgement nobody asked for
var ErrNoPendingMove = errors.New("no pending move")

// Reduce is the pure transition function for a deal view. It never applies a
// move speculatively: Requested only records a PendingMove, the stage changes
// on Acknowledged.
func Reduce(s State, e Event) (State, error) {
	switch ev := e.(type) {
	case Requested:
		if s.Pending != nil {
			return s, fmt.Errorf("deal %s: %w", s.Deal.ID, lifecycle.ErrInFlight)
		}
		next, err := AttemptTransition(s.Deal, ev.Target)
		if err != nil {
			return s, err
		}
		if next.Stage == s.Deal.Stage {
			return s, nil
		}
		return State{
			Deal: s.Deal,
			Pending: &PendingMove{
				DealID:  s.Deal.ID,
				From:    s.Deal.Stage,
				To:      next.Stage,
				Version: s.Deal.Version,
			},
		}, nil

	case Acknowledged:
		if s.Pending == nil {
			return s, ErrNoPendingMove
		}
		if ev.Deal.ID != s.Deal.ID {
			return s, fmt.Errorf("acknowledgement for deal %s does not match %s", ev.Deal.ID, s.Deal.ID)
		}
		return State{Deal: ev.Deal}, nil

	case Failed:
		out := State{Deal: s.Deal}
		if ev.Latest != nil {
			out.Deal = *ev.Latest
		}
		return out, nil

	case nil:
		return s, errors.New("nil deal event")
	}
	return s, fmt.Errorf("unhandled deal event %T", e)
}
