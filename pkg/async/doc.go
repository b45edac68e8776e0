// Package async provides safe concurrent execution primitives.
//
// # Key Functions
//
// SafeGo: fire-and-forget goroutine with panic recovery, timeout and logging
//
//	async.SafeGo(ctx, logger, time.Minute, "dashboard refresh", func(ctx context.Context) error {
//		return agg.Run(ctx)
//	})
//
// Each: bounded fan-out over a selection with per-item outcomes
//
//	res := async.Each(ctx, orgIDs, 4, 10*time.Second, port.SendReminder)
//	// res.Succeeded / res.Failed, never an all-or-nothing error
//
// # Related Packages
//
//   - pkg/onboarding: bulk reminders and exports use Each
//   - pkg/api: on-demand dashboard refresh uses SafeGo
package async
