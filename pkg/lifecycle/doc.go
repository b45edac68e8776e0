// Package lifecycle holds the building blocks shared by the staged-progression engines.
//
// # Overview
//
// Deals, onboarding checklists and dunning sequences all move through a finite set
// of states. This package provides the pieces every engine is built from:
//
//   - Table: static adjacency of legal next states per entity type
//   - Bands: the single threshold classifier used for phases, severities and risk levels
//   - Pass: one captured "now" per computation pass, with calendar-date day counts
//   - InFlight: per-entity serialization of mutating actions
//   - Scope: liveness check so late responses for a torn-down view are discarded
//   - BatchResult: per-item outcomes for bulk actions
//
// # Errors
//
// All engines report failures with the sentinels below so callers can tell
// "nothing changed" from "some things changed":
//
//	if errors.Is(err, lifecycle.ErrInvalidTransition) {
//		// rejected locally, never sent to the billing service
//	}
//	if errors.Is(err, lifecycle.ErrConflict) {
//		// refetch, no client-side merge
//	}
//
// # Related Packages
//
//   - pkg/deals: sales pipeline
//   - pkg/onboarding: onboarding progress tracker
//   - pkg/dunning: payment recovery sequences
//   - pkg/health: health scores and risk classification
package lifecycle
