package main

import (
	"context"
	"flag"
	"os"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/clientops/pkg/app"
	"github.com/platinummonkey/clientops/pkg/config"
	"github.com/platinummonkey/clientops/pkg/observability"
)

var version = "dev"

var (
	schedule  = flag.String("schedule", "", "Cron schedule for dashboard refresh (overrides CLIENTOPS_AGGREGATION_SCHEDULE)")
	rulesFile = flag.String("rules", "", "YAML rules file (overrides CLIENTOPS_RULES_FILE)")
	runOnce   = flag.Bool("run-once", false, "Refresh the dashboard once and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.InfoLevel, os.Stderr).WithError(err).Error("invalid configuration")
		os.Exit(1)
	}
	if *schedule != "" {
		cfg.Aggregator.Schedule = *schedule
	}
	if *rulesFile != "" {
		cfg.RulesFile = *rulesFile
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("service", "clientops-aggregator")
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("aggregator stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := app.New(ctx, cfg, logger, version)
	if err != nil {
		return err
	}
	if err := a.WatchRules(ctx); err != nil {
		_ = a.Shutdown.Shutdown(context.Background())
		return err
	}

	if *runOnce {
		runCtx, cancel := context.WithTimeout(ctx, cfg.Aggregator.Timeout)
		_, err := a.Aggregator.Run(runCtx)
		cancel()
		if serr := a.Shutdown.Shutdown(context.Background()); serr != nil {
			logger.WithError(serr).Warn("shutdown after single run")
		}
		return err
	}

	c := cron.New()
	if _, err := a.Aggregator.Schedule(ctx, c, cfg.Aggregator.Schedule, cfg.Aggregator.Timeout); err != nil {
		_ = a.Shutdown.Shutdown(context.Background())
		return err
	}
	c.Start()
	a.Shutdown.RegisterShutdownFunc("cron", func(ctx context.Context) error {
		select {
		case <-c.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	a.Serve("health", a.HealthServer(), stop)

	logger.WithFields(map[string]interface{}{
		"schedule": cfg.Aggregator.Schedule,
		"timeout":  cfg.Aggregator.Timeout.String(),
	}).Info("aggregator started")
	return a.Shutdown.WaitForShutdown(ctx)
}
