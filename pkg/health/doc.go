// Package health scores client health from usage, payment and subscription
// sub-scores.
//
// The overall score is the weighted mean of the sub-scores with weights
// injected from the rules file. Risk levels use the same band classifier as
// onboarding phases and dunning severity:
//
//	>= 80  LOW
//	60-79  MEDIUM
//	40-59  HIGH
//	< 40   CRITICAL
package health
