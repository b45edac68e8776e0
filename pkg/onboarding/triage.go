package onboarding

import (
	"fmt"
	"sort"
	"strings"
)

// StalledFilter narrows the list by stall state
type StalledFilter string

const (
	StalledAll    StalledFilter = "ALL"
	StalledOnly   StalledFilter = "STALLED"
	StalledActive StalledFilter = "ACTIVE"
)

// PhaseAll disables the phase filter
const PhaseAll Phase = "ALL"

// Filter is the active list filter. The zero value shows everything.
type Filter struct {
	Phase   Phase         `json:"phase"`
	Stalled StalledFilter `json:"stalled"`
}

// ParseFilter reads the phase and stalled query values; empty means ALL
func ParseFilter(phase, stalled string) (Filter, error) {
	f := Filter{Phase: PhaseAll, Stalled: StalledAll}
	if p := strings.ToUpper(strings.TrimSpace(phase)); p != "" && p != string(PhaseAll) {
		parsed, err := ParsePhase(p)
		if err != nil {
			return Filter{}, err
		}
		f.Phase = parsed
	}
	switch s := StalledFilter(strings.ToUpper(strings.TrimSpace(stalled))); s {
	case "", StalledAll:
	case StalledOnly, StalledActive:
		f.Stalled = s
	default:
		return Filter{}, fmt.Errorf("unknown stalled filter %q", stalled)
	}
	return f, nil
}

func (f Filter) normalized() Filter {
	if f.Phase == "" {
		f.Phase = PhaseAll
	}
	if f.Stalled == "" {
		f.Stalled = StalledAll
	}
	return f
}

// Matches reports whether p passes the filter
func (f Filter) Matches(p Progress) bool {
	f = f.normalized()
	if f.Phase != PhaseAll && p.Phase != f.Phase {
		return false
	}
	switch f.Stalled {
	case StalledOnly:
		return p.IsStalled
	case StalledActive:
		return !p.IsStalled
	}
	return true
}

// Triage filters and orders clients for display: stalled first, then by
// ascending progress, ties broken by organization ID.
func Triage(items []Progress, f Filter) []Progress {
	out := make([]Progress, 0, len(items))
	for _, p := range items {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	return out
}

func less(a, b Progress) bool {
	if a.IsStalled != b.IsStalled {
		return a.IsStalled
	}
	if a.ProgressPercent != b.ProgressPercent {
		return a.ProgressPercent < b.ProgressPercent
	}
	return a.OrganizationID < b.OrganizationID
}
