package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/clientops/pkg/api"
	"github.com/platinummonkey/clientops/pkg/app"
	"github.com/platinummonkey/clientops/pkg/config"
	"github.com/platinummonkey/clientops/pkg/deals"
	"github.com/platinummonkey/clientops/pkg/dunning"
	"github.com/platinummonkey/clientops/pkg/health"
	"github.com/platinummonkey/clientops/pkg/observability"
	"github.com/platinummonkey/clientops/pkg/onboarding"
	"github.com/platinummonkey/clientops/pkg/ratelimit"
)

var version = "dev"

func main() {
	rulesFile := flag.String("rules", "", "YAML rules file (overrides CLIENTOPS_RULES_FILE)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.InfoLevel, os.Stderr).WithError(err).Error("invalid configuration")
		os.Exit(1)
	}
	if *rulesFile != "" {
		cfg.RulesFile = *rulesFile
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("service", "clientops")
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("clientops stopped with error")
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

	dealService := deals.NewService(a.Platform,
		deals.WithPublisher(a.Publisher),
		deals.WithLogger(logger.WithField("component", "deals")),
		deals.WithMetrics(a.Metrics),
	)
	onboardingService := onboarding.NewService(a.Platform, a.Notifier, cfg.Onboarding,
		logger.WithField("component", "onboarding"), a.Metrics)
	dunningService := dunning.NewService(a.Platform, a.Gateway,
		dunning.WithPublisher(a.Publisher),
		dunning.WithLogger(logger.WithField("component", "dunning")),
		dunning.WithMetrics(a.Metrics),
	)
	scorer, err := health.NewScorer(health.EqualWeights())
	if err != nil {
		return err
	}
	healthService := health.NewService(a.Platform, scorer, logger.WithField("component", "health"))

	if err := a.WatchRules(ctx,
		config.HealthApplier(healthService),
		config.DunningApplier(dunningService),
	); err != nil {
		_ = a.Shutdown.Shutdown(context.Background())
		return err
	}

	server := api.NewServer(logger, a.Metrics)
	if limiter := a.Limiter(ctx); limiter != nil {
		server.Use(ratelimit.Middleware(limiter, logger.WithField("component", "ratelimit")))
	}
	server.RegisterRoutes(
		api.NewDealHandlers(dealService),
		api.NewOnboardingHandlers(onboardingService),
		api.NewDunningHandlers(dunningService),
		api.NewHealthHandlers(healthService),
		api.NewDashboardHandlers(a.Aggregator, a.Notices, logger),
	)

	a.Serve("api", &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(server, "clientops"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, stop)
	a.Serve("health", a.HealthServer(), stop)

	logger.WithField("version", version).Info("clientops started")
	return a.Shutdown.WaitForShutdown(ctx)
}
