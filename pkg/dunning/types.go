package dunning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/money"
)

const entity = "dunning sequence"

// Status is the lifecycle state of a dunning sequence
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusEscalated Status = "ESCALATED"
	StatusRecovered Status = "RECOVERED"
	StatusFailed    Status = "FAILED"
)

// Statuses lists every status
var Statuses = []Status{StatusActive, StatusEscalated, StatusRecovered, StatusFailed}

// ParseStatus converts a wire value into a Status
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusActive, StatusEscalated, StatusRecovered, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown dunning status %q", s)
}

// IsOpen reports whether the sequence still has money outstanding
func (s Status) IsOpen() bool {
	return s == StatusActive || s == StatusEscalated
}

// transitions: an active sequence can be escalated or resolved, an escalated
// one only resolved. RECOVERED and FAILED are final.
var transitions = lifecycle.NewTable(map[Status][]Status{
	StatusActive:    {StatusEscalated, StatusRecovered, StatusFailed},
	StatusEscalated: {StatusRecovered, StatusFailed},
	StatusRecovered: {},
	StatusFailed:    {},
})

// CanTransition reports whether from -> to is legal
func CanTransition(from, to Status) bool {
	return transitions.Allows(from, to)
}

// IsTerminal reports whether no further status change is possible
func IsTerminal(s Status) bool {
	return transitions.IsTerminal(s)
}

// Sequence is one payment recovery process for a failed invoice
type Sequence struct {
	ID               string       `json:"id"`
	OrganizationID   string       `json:"organization_id"`
	OrganizationName string       `json:"organization_name,omitempty"`
	InvoiceID        string       `json:"invoice_id"`
	InvoiceAmount    money.Amount `json:"invoice_amount"`
	Status           Status       `json:"status"`
	CurrentStep      int          `json:"current_step"`
	TotalSteps       int          `json:"total_steps"`
	FailedAt         time.Time    `json:"failed_at"`
	ResolvedAt       *time.Time   `json:"resolved_at,omitempty"`
	FailureReason    string       `json:"failure_reason,omitempty"`
	Version          string       `json:"version,omitempty"`
}

// Validate checks the invariants a sequence from the billing service must hold
func (s Sequence) Validate() error {
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if _, err := ParseStatus(string(s.Status)); err != nil {
		errs = append(errs, err)
	}
	if s.TotalSteps < 1 {
		errs = append(errs, fmt.Errorf("total steps %d must be at least 1", s.TotalSteps))
	} else if s.CurrentStep < 1 || s.CurrentStep > s.TotalSteps {
		errs = append(errs, fmt.Errorf("current step %d outside 1..%d", s.CurrentStep, s.TotalSteps))
	}
	if s.InvoiceAmount.Minor < 0 {
		errs = append(errs, fmt.Errorf("invoice amount %s is negative", s.InvoiceAmount))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid dunning sequence %s: %w", s.ID, errors.Join(errs...))
	}
	return nil
}

// DaysSinceFailure counts calendar days from FailedAt to the pass date
func (s Sequence) DaysSinceFailure(pass lifecycle.Pass) int {
	return pass.DaysSince(s.FailedAt)
}

// StepPercent is CurrentStep/TotalSteps as a whole percentage, 0 when the
// step counters are invalid
func (s Sequence) StepPercent() int {
	if s.TotalSteps < 1 || s.CurrentStep < 1 || s.CurrentStep > s.TotalSteps {
		return 0
	}
	return (s.CurrentStep*200 + s.TotalSteps) / (s.TotalSteps * 2)
}
