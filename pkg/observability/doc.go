// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes observability infrastructure: JSON logging with
// request-scoped fields, lifecycle metrics, health probes, panic recovery
// and ordered graceful shutdown.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("port", 8080).Info("server started")
//
// Request-scoped logging picks up the request ID, actor and trace IDs:
//
//	observability.FromContext(ctx).WithError(err).Warn("transition rejected")
//
// # Prometheus Metrics
//
// Every recorder is nil-safe, so engines built without metrics need no checks:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordTransition("deal", "CONTACTED", "applied")
//	http.Handle("/metrics", observability.MetricsHandler(registry))
//
// With OpenTelemetry enabled the lifecycle counters are mirrored to OTLP:
//
//	mirror, _ := observability.NewOTelMetrics(providers.MeterProvider.Meter("clientops"))
//	metrics.MirrorTo(mirror)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddCheck("platform", true, client.Ping)
//	checker.AddCheck("redis", false, observability.RedisCheck(redisClient))
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "clientops",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging and recovery middleware
package observability
