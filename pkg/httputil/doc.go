// Package httputil holds the JSON and middleware helpers shared by the
// clientops HTTP handlers.
//
// Errors from the lifecycle engines are written with WriteLifecycleError,
// which maps the error kind onto a status:
//
//	invalid transition  422
//	not found           404
//	conflict            409 (body carries the current entity)
//	in flight           429
//	unavailable         503
//
// Middleware is composed with Chain:
//
//	handler := httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.RequestContextMiddleware,
//		httputil.LoggingMiddleware(logger),
//	)(router)
package httputil
