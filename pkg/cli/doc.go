// Package cli provides the clientops command-line interface.
//
// The CLI evaluates lifecycle rules offline, with the same engines the API
// uses, so operators can check a rules file or answer "why is this client
// flagged" without calling the CRM service.
//
// # Commands
//
// stage: Check a deal stage move
//
//	clientops stage check LEAD CONTACTED
//	clientops stage next NEGOTIATION
//
// onboarding: Derive phase and stall severity
//
//	clientops onboarding phase --points 45 --max 150 --stalled-days 9
//
// dunning: Classify days since a payment failure
//
//	clientops dunning severity 10 --rules rules.yaml
//
// health: Compute the overall score and risk level
//
//	clientops health score --usage 80 --payment 40 --subscription 65 --change -3
//
// Every command prints JSON. --rules points at the same YAML rules file the
// server hot-reloads; without it the built-in defaults are used.
package cli
