package deals

import (
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/money"
)

// Stage is a position in the sales pipeline
type Stage string

const (
	StageLead          Stage = "LEAD"
	StageContacted     Stage = "CONTACTED"
	StageDemoScheduled Stage = "DEMO_SCHEDULED"
	StageDemoDone      Stage = "DEMO_DONE"
	StageProposalSent  Stage = "PROPOSAL_SENT"
	StageNegotiation   Stage = "NEGOTIATION"
	StageWon           Stage = "WON"
	StageLost          Stage = "LOST"
	StageChurned       Stage = "CHURNED"
)

// Stages lists every stage in pipeline order
var Stages = []Stage{
	StageLead,
	StageContacted,
	StageDemoScheduled,
	StageDemoDone,
	StageProposalSent,
	StageNegotiation,
	StageWon,
	StageLost,
	StageChurned,
}

// ParseStage converts a wire value into a Stage. Unknown values are an error,
// never a silent fallback.
func ParseStage(s string) (Stage, error) {
	stage := Stage(strings.ToUpper(strings.TrimSpace(s)))
	if !stage.Valid() {
		return "", fmt.Errorf("unknown deal stage %q", s)
	}
	return stage, nil
}

// Valid reports whether s is a known stage
func (s Stage) Valid() bool {
	switch s {
	case StageLead, StageContacted, StageDemoScheduled, StageDemoDone,
		StageProposalSent, StageNegotiation, StageWon, StageLost, StageChurned:
		return true
	}
	return false
}

// IsOpen reports whether the deal is still being worked
func (s Stage) IsOpen() bool {
	switch s {
	case StageLead, StageContacted, StageDemoScheduled, StageDemoDone,
		StageProposalSent, StageNegotiation:
		return true
	case StageWon, StageLost, StageChurned:
		return false
	}
	return false
}

// Deal is a sales opportunity as returned by the CRM service
type Deal struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	OrganizationID    string          `json:"organization_id,omitempty"`
	Stage             Stage           `json:"stage"`
	EstimatedValue    money.Amount    `json:"estimated_value"`
	ExpectedCloseDate *lifecycle.Date `json:"expected_close_date,omitempty"`
	Source            string          `json:"source,omitempty"`
	AssigneeID        *string         `json:"assignee_id,omitempty"`
	Version           string          `json:"version"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsOverdue reports whether an open deal is past its expected close date
func (d Deal) IsOverdue(today lifecycle.Date) bool {
	if !d.Stage.IsOpen() || d.ExpectedCloseDate == nil {
		return false
	}
	return d.ExpectedCloseDate.Before(today)
}

// CanDelete reports whether the deal may be deleted (only from LEAD or LOST)
func CanDelete(d Deal) bool {
	return d.Stage == StageLead || d.Stage == StageLost
}
