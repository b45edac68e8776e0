package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule refreshes the dashboard every five minutes
const DefaultSchedule = "*/5 * * * *"

// Schedule registers periodic runs on a cron scheduler. Overlapping runs are
// skipped and each run is bounded by timeout. The caller starts and stops c.
func (a *Aggregator) Schedule(ctx context.Context, c *cron.Cron, spec string, timeout time.Duration) (cron.EntryID, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		// failures are logged and counted by Run
		_, _ = a.Run(runCtx)
	}))
	id, err := c.AddJob(spec, job)
	if err != nil {
		return 0, fmt.Errorf("invalid aggregation schedule %q: %w", spec, err)
	}
	return id, nil
}
