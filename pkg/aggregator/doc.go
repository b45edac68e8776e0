// Package aggregator recomputes the lifecycle dashboard.
//
// Each run loads the deals, onboarding progress, dunning sequences and health
// scores concurrently, captures one lifecycle.Pass, and derives the pipeline
// metrics, onboarding overview, dunning statistics and health summary from it.
// The result is kept in memory, written to the dashboard cache, exported as
// Prometheus gauges, and announced with a DashboardRefreshed event.
//
// A run whose fetch fails leaves the previous dashboard in place:
//
//	agg := aggregator.New(source,
//		aggregator.WithCache(dashboardCache),
//		aggregator.WithMetrics(metrics),
//	)
//
//	c := cron.New()
//	if _, err := agg.Schedule(ctx, c, aggregator.DefaultSchedule, time.Minute); err != nil {
//		return err
//	}
//	c.Start()
//	defer c.Stop()
//
// API servers that do not run the aggregator themselves read the cached copy
// through Latest.
package aggregator
