// Package api exposes the lifecycle engines over HTTP.
//
// Routes are grouped by engine, each group registering itself on the
// server's gorilla/mux router:
//
//	server := api.NewServer(logger, metrics)
//	server.RegisterRoutes(
//		api.NewDealHandlers(dealService),
//		api.NewOnboardingHandlers(onboardingService),
//		api.NewDunningHandlers(dunningService),
//		api.NewHealthHandlers(healthService),
//		api.NewDashboardHandlers(agg, recorder, logger),
//	)
//	http.ListenAndServe(":8080", server)
//
// Deals:
//
//	GET    /v1/deals                         board columns and pipeline metrics
//	GET    /v1/deals/pipeline                pipeline metrics
//	GET    /v1/deals/{id}                    one deal with its legal actions
//	POST   /v1/deals/{id}/actions/{action}   named action, body {"version": "..."}
//	POST   /v1/deals/{id}/transition         body {"target": "WON", "version": "..."}
//	POST   /v1/deals/{id}/drop               board drop, body {"column": "...", "version": "..."}
//	DELETE /v1/deals/{id}                    LEAD or LOST deals only
//
// Onboarding:
//
//	GET  /v1/onboarding?phase=&stalled=      overview and triaged clients
//	POST /v1/onboarding/{org}/reminders
//	POST /v1/onboarding/{org}/calls
//	POST /v1/onboarding/bulk/reminders       body {"phase", "stalled", "ids"}
//	POST /v1/onboarding/bulk/assign          also "assignee_id"
//	POST /v1/onboarding/bulk/export
//
// Dunning, health and the dashboard:
//
//	GET  /v1/dunning?status=
//	GET  /v1/dunning/statistics
//	GET  /v1/dunning/{id}
//	POST /v1/dunning/{id}/actions/{action}
//	GET  /v1/health?at_risk=true
//	GET  /v1/dashboard
//	POST /v1/dashboard/refresh
//	GET  /v1/notices
//
// A rejected move answers 422, a version conflict 409 with the server's
// current copy under "current", a second request for an entity with one
// already outstanding 429, and an unreachable backend 503. Bulk endpoints
// answer 200 with the per-item outcome.
package api
