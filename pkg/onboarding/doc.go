// Package onboarding tracks how far each new client has come through the
// onboarding checklist.
//
// Progress, phase and stall severity are always derived from the checklist
// points and the last recorded activity; none of them is stored. All values
// in one listing are computed against a single lifecycle.Pass.
//
// # Bulk actions
//
// BulkReminder, BulkAssign and Export act on a selection. The selection is
// first restricted to the clients visible under the filter it was made with,
// then every client is processed independently:
//
//	result, err := svc.BulkReminder(ctx, filter, ids)
//	// err != nil only when the view could not be loaded
//	// result.Failed lists each client that did not get a reminder
//
// Outcomes are reported to the injected notify.Notifier.
package onboarding
