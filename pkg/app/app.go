package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/clientops/pkg/aggregator"
	"github.com/platinummonkey/clientops/pkg/billing"
	"github.com/platinummonkey/clientops/pkg/cache"
	"github.com/platinummonkey/clientops/pkg/config"
	"github.com/platinummonkey/clientops/pkg/dunning"
	"github.com/platinummonkey/clientops/pkg/events"
	"github.com/platinummonkey/clientops/pkg/notify"
	"github.com/platinummonkey/clientops/pkg/observability"
	"github.com/platinummonkey/clientops/pkg/platform"
	"github.com/platinummonkey/clientops/pkg/platform/reporting"
	"github.com/platinummonkey/clientops/pkg/ratelimit"
)

// noticeLimit is how many notices the API keeps for /v1/notices
const noticeLimit = 200

// meterName scopes the OpenTelemetry instruments
const meterName = "github.com/platinummonkey/clientops"

// App holds the components shared by the clientops binaries. Everything
// that owns a connection registers itself with Shutdown.
type App struct {
	Config     *config.Config
	Logger     *observability.Logger
	Registry   *prometheus.Registry
	Metrics    *observability.Metrics
	Platform   *platform.Client
	Gateway    dunning.Gateway
	Cache      cache.Cache
	Publisher  events.Publisher
	Notices    *notify.Recorder
	Notifier   notify.Notifier
	Aggregator *aggregator.Aggregator
	Checker    *observability.HealthChecker
	Shutdown   *observability.ShutdownManager

	redis *cache.Redis
}

// New builds every shared component from cfg. Optional backends (Stripe,
// Redis, Kafka, the reporting replica) are used only when configured.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger, version string) (*App, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Checker:  observability.NewHealthChecker(version),
		Shutdown: observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout),
		Notices:  notify.NewRecorder(noticeLimit),
	}
	if err := a.build(ctx); err != nil {
		if serr := a.Shutdown.Shutdown(context.Background()); serr != nil {
			logger.WithError(serr).Warn("cleanup after failed startup")
		}
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	if cfg.Observability.MetricsEnabled {
		a.Registry = prometheus.NewRegistry()
		a.Metrics = observability.NewMetrics(a.Registry)
	}

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel, a.Logger)
	if err != nil {
		return err
	}
	if providers != nil {
		a.Shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, a.Logger)
		})
		if a.Metrics != nil {
			mirror, err := observability.NewOTelMetrics(providers.MeterProvider.Meter(meterName))
			if err != nil {
				return err
			}
			a.Metrics.MirrorTo(mirror)
		}
	}

	a.Platform, err = platform.NewClient(cfg.Platform, a.Logger, a.Metrics)
	if err != nil {
		return err
	}
	a.Checker.AddCheck("platform", true, a.Platform.Ping)

	a.Gateway = a.Platform
	if cfg.Stripe.APIKey != "" {
		a.Gateway, err = billing.NewStripeGateway(cfg.Stripe, a.Logger, a.Metrics)
		if err != nil {
			return err
		}
	}

	a.Cache = a.newCache()
	if a.Publisher, err = a.newPublisher(); err != nil {
		return err
	}
	a.Notifier = notify.Multi{
		notify.NewLogNotifier(a.Logger),
		notify.NewEventNotifier(a.Publisher, a.Logger),
		a.Notices,
	}

	source, err := a.newSource()
	if err != nil {
		return err
	}
	a.Aggregator = aggregator.New(source,
		aggregator.WithCache(a.Cache),
		aggregator.WithPublisher(a.Publisher),
		aggregator.WithNotifier(a.Notifier),
		aggregator.WithLogger(a.Logger.WithField("component", "aggregator")),
		aggregator.WithMetrics(a.Metrics),
	)
	a.Shutdown.RegisterShutdownFunc("aggregator", func(context.Context) error {
		a.Aggregator.Close()
		return nil
	})
	return nil
}

// newCache layers the in-process cache over Redis. An unreachable Redis at
// startup degrades to the local cache instead of failing.
func (a *App) newCache() cache.Cache {
	cfg := a.Config.Cache
	local := cache.NewMemory(cfg.LocalSize, cfg.LocalTTL, a.Metrics)
	if cfg.Redis.URL == "" {
		return local
	}
	shared, err := cache.NewRedis(cfg.Redis, a.Metrics)
	if err != nil {
		a.Logger.WithError(err).Warn("redis unavailable, using local dashboard cache only")
		return local
	}
	a.redis = shared
	a.Checker.AddCheck("redis", false, observability.RedisCheck(shared.Client()))
	a.Shutdown.RegisterShutdownFunc("redis", func(context.Context) error { return shared.Close() })
	return cache.NewTiered(local, shared, a.Logger)
}

func (a *App) newPublisher() (events.Publisher, error) {
	if len(a.Config.Kafka.Brokers) == 0 {
		return events.NopPublisher{}, nil
	}
	p, err := events.NewKafkaPublisher(a.Config.Kafka)
	if err != nil {
		return nil, err
	}
	a.Shutdown.RegisterShutdownFunc("kafka", func(context.Context) error { return p.Close() })
	return p, nil
}

// newSource reads snapshots from the reporting replica when one is
// configured, otherwise from the CRM API
func (a *App) newSource() (aggregator.Source, error) {
	if a.Config.Reporting.URL == "" {
		return a.Platform, nil
	}
	r, err := reporting.Open(a.Config.Reporting)
	if err != nil {
		return nil, err
	}
	a.Checker.AddCheck("reporting", false, observability.SQLCheck(r.DB()))
	a.Shutdown.RegisterShutdownFunc("reporting", func(context.Context) error { return r.Close() })
	return r, nil
}

// Limiter returns the action rate limiter, shared through Redis when it is
// available. It is nil when rate limiting is disabled.
func (a *App) Limiter(ctx context.Context) ratelimit.Limiter {
	cfg := a.Config.RateLimit
	if !cfg.Enabled {
		return nil
	}
	if a.redis != nil {
		return ratelimit.NewRedis(a.redis.Client(), cfg.Config, a.Config.Cache.Redis.Prefix+"ratelimit")
	}
	local := ratelimit.NewLocal(cfg.Config)
	local.StartCleanup(ctx)
	return local
}

// WatchRules applies the rules file to the aggregator and to the extra
// appliers, and keeps applying it on change until ctx is done
func (a *App) WatchRules(ctx context.Context, appliers ...config.Applier) error {
	all := append([]config.Applier{config.AggregatorApplier(a.Aggregator)}, appliers...)
	if _, err := config.WatchRules(ctx, a.Config.RulesFile, a.Logger, all...); err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	return nil
}

// HealthServer serves the probes and, when enabled, /metrics on the health port
func (a *App) HealthServer() *http.Server {
	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, a.Checker)
	if a.Registry != nil {
		mux.Handle("/metrics", observability.MetricsHandler(a.Registry))
	}
	return &http.Server{
		Addr:              net.JoinHostPort(a.Config.Server.Host, a.Config.Server.HealthPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Serve starts srv in the background and registers it for draining. A
// listener failure calls stop so the process shuts down.
func (a *App) Serve(name string, srv *http.Server, stop context.CancelFunc) {
	logger := a.Logger.WithFields(map[string]interface{}{"server": name, "addr": srv.Addr})
	if srv.ErrorLog == nil {
		w := logger.Writer()
		srv.ErrorLog = log.New(w, "", 0)
		a.Shutdown.RegisterShutdownFunc(name+" error log", func(context.Context) error { return w.Close() })
	}
	a.Shutdown.AddServer(srv)
	go func() {
		defer observability.RecoverPanic(a.Logger, name)
		logger.Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server failed")
			stop()
		}
	}()
}
