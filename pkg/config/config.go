package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/clientops/pkg/billing"
	"github.com/platinummonkey/clientops/pkg/cache"
	"github.com/platinummonkey/clientops/pkg/events"
	"github.com/platinummonkey/clientops/pkg/observability"
	"github.com/platinummonkey/clientops/pkg/onboarding"
	"github.com/platinummonkey/clientops/pkg/platform"
	"github.com/platinummonkey/clientops/pkg/platform/reporting"
	"github.com/platinummonkey/clientops/pkg/ratelimit"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Platform      platform.Config
	Stripe        billing.StripeConfig
	Reporting     reporting.Config
	Cache         CacheConfig
	Kafka         events.KafkaConfig
	Onboarding    onboarding.Config
	Aggregator    AggregatorConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig

	// RulesFile is the YAML file holding health weights, dunning thresholds
	// and alert limits; empty means built-in defaults
	RulesFile string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// CacheConfig holds dashboard cache settings
type CacheConfig struct {
	Redis     cache.RedisConfig
	LocalSize int
	LocalTTL  time.Duration
}

// AggregatorConfig holds dashboard refresh settings
type AggregatorConfig struct {
	Schedule string
	Timeout  time.Duration
}

// RateLimitConfig throttles mutating actions per actor
type RateLimitConfig struct {
	Enabled bool
	ratelimit.Config
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
	OTel           observability.OTelConfig
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Platform:      loadPlatformConfig(),
		Stripe:        loadStripeConfig(),
		Reporting:     loadReportingConfig(),
		Cache:         loadCacheConfig(),
		Kafka:         loadKafkaConfig(),
		Onboarding:    loadOnboardingConfig(),
		Aggregator:    loadAggregatorConfig(),
		RateLimit:     loadRateLimitConfig(),
		Observability: loadObservabilityConfig(),
		RulesFile:     getEnv("CLIENTOPS_RULES_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CLIENTOPS_HOST", "0.0.0.0"),
		Port:            getEnv("CLIENTOPS_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CLIENTOPS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CLIENTOPS_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("CLIENTOPS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CLIENTOPS_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("CLIENTOPS_HEALTH_PORT", "9090"),
	}
}

func loadPlatformConfig() platform.Config {
	retry := platform.DefaultRetryConfig()
	retry.MaxAttempts = getEnvInt("CLIENTOPS_PLATFORM_MAX_ATTEMPTS", retry.MaxAttempts)
	retry.InitialDelay = getEnvDuration("CLIENTOPS_PLATFORM_RETRY_DELAY", retry.InitialDelay)
	retry.MaxDelay = getEnvDuration("CLIENTOPS_PLATFORM_RETRY_MAX_DELAY", retry.MaxDelay)

	return platform.Config{
		BaseURL:       getEnv("CLIENTOPS_PLATFORM_URL", ""),
		Token:         getEnv("CLIENTOPS_PLATFORM_TOKEN", ""),
		SigningSecret: getEnv("CLIENTOPS_PLATFORM_SIGNING_SECRET", ""),
		Timeout:       getEnvDuration("CLIENTOPS_PLATFORM_TIMEOUT", 10*time.Second),
		Retry:         retry,
	}
}

func loadStripeConfig() billing.StripeConfig {
	return billing.StripeConfig{
		APIKey:            getEnv("CLIENTOPS_STRIPE_API_KEY", ""),
		URL:               getEnv("CLIENTOPS_STRIPE_URL", ""),
		MaxNetworkRetries: getEnvInt64("CLIENTOPS_STRIPE_MAX_RETRIES", 2),
	}
}

func loadReportingConfig() reporting.Config {
	return reporting.Config{
		URL:         getEnv("CLIENTOPS_REPORTING_URL", ""),
		MaxConns:    getEnvInt("CLIENTOPS_REPORTING_MAX_CONNS", 8),
		MinConns:    getEnvInt("CLIENTOPS_REPORTING_MIN_CONNS", 2),
		Timeout:     getEnvDuration("CLIENTOPS_REPORTING_TIMEOUT", 5*time.Second),
		MaxLifetime: getEnvDuration("CLIENTOPS_REPORTING_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("CLIENTOPS_REPORTING_MAX_IDLE_TIME", 5*time.Minute),
		PageSize:    getEnvInt("CLIENTOPS_REPORTING_PAGE_SIZE", reporting.DefaultPageSize),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Redis: cache.RedisConfig{
			URL:        getEnv("CLIENTOPS_REDIS_URL", ""),
			Password:   getEnv("CLIENTOPS_REDIS_PASSWORD", ""),
			DB:         getEnvInt("CLIENTOPS_REDIS_DB", 0),
			PoolSize:   getEnvInt("CLIENTOPS_REDIS_POOL_SIZE", 0),
			MaxRetries: getEnvInt("CLIENTOPS_REDIS_MAX_RETRIES", 0),
			Prefix:     getEnv("CLIENTOPS_REDIS_PREFIX", "clientops:"),
			TTL:        getEnvDuration("CLIENTOPS_CACHE_TTL", cache.DefaultTTL),
		},
		LocalSize: getEnvInt("CLIENTOPS_L1_CACHE_SIZE", 16),
		LocalTTL:  getEnvDuration("CLIENTOPS_L1_CACHE_TTL", 30*time.Second),
	}
}

func loadKafkaConfig() events.KafkaConfig {
	return events.KafkaConfig{
		Brokers:      getEnvList("CLIENTOPS_KAFKA_BROKERS"),
		Topic:        getEnv("CLIENTOPS_KAFKA_TOPIC", "clientops.lifecycle"),
		WriteTimeout: getEnvDuration("CLIENTOPS_KAFKA_WRITE_TIMEOUT", 10*time.Second),
	}
}

func loadOnboardingConfig() onboarding.Config {
	def := onboarding.DefaultConfig()
	return onboarding.Config{
		Workers:     getEnvInt("CLIENTOPS_BULK_WORKERS", def.Workers),
		ItemTimeout: getEnvDuration("CLIENTOPS_BULK_ITEM_TIMEOUT", def.ItemTimeout),
	}
}

func loadAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		Schedule: getEnv("CLIENTOPS_AGGREGATION_SCHEDULE", "*/5 * * * *"),
		Timeout:  getEnvDuration("CLIENTOPS_AGGREGATION_TIMEOUT", 2*time.Minute),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	def := ratelimit.DefaultConfig()
	return RateLimitConfig{
		Enabled: getEnvBool("CLIENTOPS_RATE_LIMIT_ENABLED", true),
		Config: ratelimit.Config{
			Requests: getEnvInt("CLIENTOPS_RATE_LIMIT_REQUESTS", def.Requests),
			Window:   getEnvDuration("CLIENTOPS_RATE_LIMIT_WINDOW", def.Window),
			Burst:    getEnvInt("CLIENTOPS_RATE_LIMIT_BURST", def.Burst),
		},
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("CLIENTOPS_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("CLIENTOPS_METRICS_ENABLED", true),
		OTel: observability.OTelConfig{
			Enabled:        getEnvBool("CLIENTOPS_OTEL_ENABLED", false),
			Endpoint:       getEnv("CLIENTOPS_OTEL_ENDPOINT", "localhost:4317"),
			ServiceName:    getEnv("CLIENTOPS_OTEL_SERVICE_NAME", "clientops"),
			ServiceVersion: getEnv("CLIENTOPS_OTEL_SERVICE_VERSION", "1.0.0"),
			Insecure:       getEnvBool("CLIENTOPS_OTEL_INSECURE", true),
			SampleRatio:    getEnvFloat("CLIENTOPS_OTEL_SAMPLE_RATIO", 0),
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Server.HealthPort == "" {
		errs = append(errs, errors.New("health port is required"))
	}
	if c.Server.Port != "" && c.Server.Port == c.Server.HealthPort {
		errs = append(errs, errors.New("server port and health port must be different"))
	}

	if c.Platform.BaseURL == "" {
		errs = append(errs, errors.New("CLIENTOPS_PLATFORM_URL is required"))
	}
	if c.Onboarding.Workers < 1 {
		errs = append(errs, errors.New("bulk workers must be at least 1"))
	}
	if c.Aggregator.Timeout <= 0 {
		errs = append(errs, errors.New("aggregation timeout must be positive"))
	}
	if c.RateLimit.Enabled {
		if err := c.RateLimit.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Observability.OTel.Enabled {
		if c.Observability.OTel.Endpoint == "" {
			errs = append(errs, errors.New("OpenTelemetry endpoint is required when OTel is enabled"))
		}
		if c.Observability.OTel.ServiceName == "" {
			errs = append(errs, errors.New("OpenTelemetry service name is required when OTel is enabled"))
		}
		if r := c.Observability.OTel.SampleRatio; r < 0 || r > 1 {
			errs = append(errs, fmt.Errorf("OpenTelemetry sample ratio %v must be between 0 and 1", r))
		}
	}

	return errors.Join(errs...)
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
