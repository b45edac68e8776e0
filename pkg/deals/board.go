package deals

import (
	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/money"
)

// Board is a kanban view of the pipeline. Only its columns accept drops;
// the demo and closing stages are reached through explicit actions.
type Board struct {
	columns []Stage
}

// DefaultBoard has the four kanban columns of the pipeline page
func DefaultBoard() Board {
	return Board{columns: []Stage{StageLead, StageContacted, StageProposalSent, StageNegotiation}}
}

// Columns returns the board columns in display order
func (b Board) Columns() []Stage {
	out := make([]Stage, len(b.columns))
	copy(out, b.columns)
	return out
}

// HasColumn reports whether s is a column of the board
func (b Board) HasColumn(s Stage) bool {
	for _, c := range b.columns {
		if c == s {
			return true
		}
	}
	return false
}

// Drop maps a drag-and-drop onto column to a transition attempt. It never
// touches the deal: the caller shows the move only after the service
// acknowledged the returned PendingMove.
func (b Board) Drop(d Deal, column Stage) (PendingMove, error) {
	if !b.HasColumn(column) {
		return PendingMove{}, &lifecycle.TransitionError{
			Entity: entity,
			From:   string(d.Stage),
			To:     string(column),
			Reason: "not a board column",
		}
	}
	if _, err := AttemptTransition(d, column); err != nil {
		return PendingMove{}, err
	}
	return PendingMove{DealID: d.ID, From: d.Stage, To: column, Version: d.Version}, nil
}

// Column is one lane of the board
type Column struct {
	Stage Stage          `json:"stage"`
	Deals []Deal         `json:"deals"`
	Value []money.Amount `json:"value"`
}

// Lay groups deals into the board columns, keeping input order within a
// column. Deals in non-column stages are left out.
func (b Board) Lay(deals []Deal) []Column {
	cols := make([]Column, len(b.columns))
	index := make(map[Stage]int, len(b.columns))
	totals := make([]money.Totals, len(b.columns))
	for i, s := range b.columns {
		cols[i] = Column{Stage: s, Deals: []Deal{}}
		index[s] = i
		totals[i] = money.Totals{}
	}
	for _, d := range deals {
		i, ok := index[d.Stage]
		if !ok {
			continue
		}
		cols[i].Deals = append(cols[i].Deals, d)
		totals[i].Add(d.EstimatedValue)
	}
	for i := range cols {
		cols[i].Value = totals[i].Amounts()
	}
	return cols
}
