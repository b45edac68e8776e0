package onboarding

import "sort"

// Selection is the set of clients picked for a bulk action. It only ever
// holds IDs visible under the current filter and is cleared whenever the
// filter changes.
type Selection struct {
	filter Filter
	view   map[string]struct{}
	ids    map[string]struct{}
}

// NewSelection starts an empty selection over a view
func NewSelection(f Filter, view []Progress) *Selection {
	s := &Selection{}
	s.Reset(f, view)
	return s
}

// Reset replaces the view. A different filter clears the selection; the same
// filter keeps the selected IDs that are still in view.
func (s *Selection) Reset(f Filter, view []Progress) {
	f = f.normalized()
	changed := s.ids == nil || f != s.filter

	s.filter = f
	s.view = make(map[string]struct{}, len(view))
	for _, p := range view {
		s.view[p.OrganizationID] = struct{}{}
	}

	if changed {
		s.ids = map[string]struct{}{}
		return
	}
	for id := range s.ids {
		if _, ok := s.view[id]; !ok {
			delete(s.ids, id)
		}
	}
}

// Filter returns the filter the selection was made under
func (s *Selection) Filter() Filter {
	return s.filter
}

// Toggle selects or deselects one ID. IDs not in view are ignored; it
// reports whether the ID is selected afterwards.
func (s *Selection) Toggle(id string) bool {
	if _, ok := s.view[id]; !ok {
		return false
	}
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// ToggleAll selects everything in view, or clears the selection when
// everything is already selected
func (s *Selection) ToggleAll() {
	if len(s.view) > 0 && len(s.ids) == len(s.view) {
		s.ids = map[string]struct{}{}
		return
	}
	for id := range s.view {
		s.ids[id] = struct{}{}
	}
}

// Has reports whether id is selected
func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected IDs
func (s *Selection) Len() int {
	return len(s.ids)
}

// IDs returns the selected organization IDs in sorted order
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Restrict keeps only the requested IDs that are in the current view,
// preserving request order and dropping duplicates. Bulk endpoints use it so
// a stale client-side selection cannot act on clients no longer shown.
func Restrict(requested []string, view []Progress) (kept, dropped []string) {
	visible := make(map[string]struct{}, len(view))
	for _, p := range view {
		visible[p.OrganizationID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(requested))
	kept, dropped = []string{}, []string{}
	for _, id := range requested {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := visible[id]; ok {
			kept = append(kept, id)
		} else {
			dropped = append(dropped, id)
		}
	}
	return kept, dropped
}
