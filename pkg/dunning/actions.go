package dunning

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
)

// ErrActionNotApplicable is returned for a manual action on a sequence that
// is not ACTIVE. It matches lifecycle.ErrInvalidTransition.
var ErrActionNotApplicable = fmt.Errorf("dunning action not applicable: %w", lifecycle.ErrInvalidTransition)

// Action is a manual operator action on an active sequence
type Action string

const (
	ActionRetryPayment    Action = "retryPayment"
	ActionSendPaymentLink Action = "sendPaymentLink"
	ActionEscalate        Action = "escalate"
)

// Actions lists every manual action
var Actions = []Action{ActionRetryPayment, ActionSendPaymentLink, ActionEscalate}

// ParseAction accepts the action name in any case, with or without dashes
func ParseAction(s string) (Action, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	for _, a := range Actions {
		if strings.ToLower(string(a)) == norm {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown dunning action %q", s)
}

// CheckAction reports whether the action may be taken on seq
func CheckAction(seq Sequence, a Action) error {
	if _, err := ParseAction(string(a)); err != nil {
		return err
	}
	if seq.Status != StatusActive {
		return fmt.Errorf("cannot %s sequence %s in status %s: %w", a, seq.ID, seq.Status, ErrActionNotApplicable)
	}
	return nil
}

// AvailableActions lists the actions allowed on seq
func AvailableActions(seq Sequence) []Action {
	if seq.Status != StatusActive {
		return []Action{}
	}
	out := make([]Action, len(Actions))
	copy(out, Actions)
	return out
}

// Outcome is what the billing side reported for an action
type Outcome struct {
	// Paid is set when a retry collected the invoice
	Paid bool `json:"paid"`
	// PaymentLink is the hosted invoice URL sent to the client
	PaymentLink string `json:"payment_link,omitempty"`
}

// Expect returns the status seq should be in once the action and its outcome
// are recorded: escalate moves to ESCALATED, a paid retry to RECOVERED,
// anything else leaves the sequence ACTIVE.
func Expect(seq Sequence, a Action, o Outcome) (Status, error) {
	if err := CheckAction(seq, a); err != nil {
		return seq.Status, err
	}
	var next Status
	switch a {
	case ActionEscalate:
		next = StatusEscalated
	case ActionRetryPayment:
		next = StatusActive
		if o.Paid {
			next = StatusRecovered
		}
	case ActionSendPaymentLink:
		next = StatusActive
	default:
		return seq.Status, fmt.Errorf("unknown dunning action %q", a)
	}
	if err := transitions.Check(entity, seq.Status, next); err != nil {
		return seq.Status, err
	}
	return next, nil
}
