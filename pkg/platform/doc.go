// Package platform adapts the billing/CRM service that owns every record the
// lifecycle engines work on.
//
// Client is the HTTP adapter used by the API server. It implements the store
// ports of the deals, onboarding, dunning and health packages and maps
// response codes onto the lifecycle errors:
//
//	404            lifecycle.ErrNotFound
//	409, 412       lifecycle.ErrConflict
//	422            lifecycle.ErrInvalidTransition
//	429, 5xx       lifecycle.ErrUnavailable
//	timeouts       lifecycle.ErrUnavailable
//
// Without a Stripe key the client is also the dunning payment gateway: the
// billing service retries the charge and issues payment links.
//
// Reads are retried with exponential backoff while the service is
// unavailable; mutations are sent exactly once.
//
// The reporting subpackage reads the same snapshots from a read-only
// Postgres replica for the aggregator.
package platform
