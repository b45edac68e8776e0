// Package deals implements the sales pipeline stage machine.
//
// # Overview
//
// A deal moves LEAD → CONTACTED → (DEMO_SCHEDULED → DEMO_DONE →) PROPOSAL_SENT →
// NEGOTIATION → WON, can be LOST from any open stage, and a WON deal can later
// CHURN. LOST and CHURNED are final. The legal moves live in one table;
// explicit actions, board drops and the pure Reduce function all validate
// against it.
//
// # Usage
//
//	svc := deals.NewService(crmClient, deals.WithPublisher(pub))
//	d, err := svc.Act(ctx, dealID, deals.ActionWin, version)
//	switch {
//	case errors.Is(err, lifecycle.ErrInvalidTransition):
//		// rejected locally, nothing was sent
//	case errors.Is(err, lifecycle.ErrConflict):
//		// d is the refetched server copy
//	}
//
// Board drops never move a card optimistically: Board.Drop returns a
// PendingMove and the card moves once the service acknowledged it, since
// entering WON has side effects such as revenue recognition.
package deals
