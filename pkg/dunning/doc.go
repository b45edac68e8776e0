// Package dunning implements the payment recovery sequence engine.
//
// A Sequence is opened by the billing service when an invoice payment fails.
// Operators can retry the payment, send a payment link or escalate to the
// account manager, and only while the sequence is ACTIVE:
//
//	ACTIVE    -> ESCALATED | RECOVERED | FAILED
//	ESCALATED -> RECOVERED | FAILED
//
// RECOVERED and FAILED are final. Severity is derived from the days since the
// failure through a Classifier built from configurable Thresholds.
package dunning
