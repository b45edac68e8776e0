package async

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
	"github.com/platinummonkey/clientops/pkg/observability"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// Use this instead of bare `go func()` to prevent goroutine leaks and crashes.
//
// Example:
//
//	SafeGo(ctx, logger, 30*time.Second, "dashboard refresh", func(ctx context.Context) error {
//	    return agg.Run(ctx)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Warn("background task failed")
		}
	}()
}

// Each runs fn for every item with at most workers calls in flight and a
// per-item timeout. Items are independent: one failure neither cancels nor
// rolls back the others, and a panic fails only its own item. Outcomes are
// reported in input order.
func Each[K comparable](ctx context.Context, items []K, workers int, timeout time.Duration,
	fn func(context.Context, K) error) *lifecycle.BatchResult[K] {

	if workers <= 0 {
		workers = 1
	}

	errs := make([]error, len(items))

	// plain Group: a failing item must not cancel the others
	var g errgroup.Group
	g.SetLimit(workers)
	for i, item := range items {
		g.Go(func() error {
			errs[i] = runOne(ctx, timeout, item, fn)
			return nil
		})
	}
	_ = g.Wait()

	result := lifecycle.NewBatchResult[K]()
	for i, item := range items {
		if errs[i] != nil {
			result.Fail(item, errs[i])
			continue
		}
		result.Succeed(item)
	}
	return result
}

func runOne[K comparable](parent context.Context, timeout time.Duration, item K,
	fn func(context.Context, K) error) (err error) {

	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	defer func() { err = observability.PanicError(recover(), err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, item)
}
