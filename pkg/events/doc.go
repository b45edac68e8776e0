// Package events publishes lifecycle notifications (acknowledged deal transitions,
// dunning actions, bulk onboarding outcomes, dashboard refreshes) to downstream
// consumers. Production uses Kafka; MemoryPublisher serves single-node setups and tests.
package events
