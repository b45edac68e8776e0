// Package notify is the notification port used to report action outcomes,
// in particular per-item results of bulk onboarding actions. Delivery to
// people (email, SMS, in-app toasts) happens elsewhere; this package logs,
// records and forwards notices as events.
package notify
