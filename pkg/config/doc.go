// Package config loads clientops configuration.
//
// # Environment
//
// Process settings come from environment variables with defaults:
//
//	CLIENTOPS_PORT="8080"
//	CLIENTOPS_HEALTH_PORT="9090"
//	CLIENTOPS_PLATFORM_URL="https://crm.internal"   # required
//	CLIENTOPS_PLATFORM_TOKEN="..."
//	CLIENTOPS_STRIPE_API_KEY="sk_live_..."
//	CLIENTOPS_REPORTING_URL="postgres://replica/crm?sslmode=require"
//	CLIENTOPS_REDIS_URL="redis://localhost:6379/0"
//	CLIENTOPS_KAFKA_BROKERS="kafka-1:9092,kafka-2:9092"
//	CLIENTOPS_AGGREGATION_SCHEDULE="*/5 * * * *"
//	CLIENTOPS_LOG_LEVEL="info"
//	CLIENTOPS_OTEL_ENABLED="false"
//	CLIENTOPS_OTEL_SAMPLE_RATIO="0"                 # 0 keeps every trace
//	CLIENTOPS_RATE_LIMIT_REQUESTS="60"              # actions per actor per window
//	CLIENTOPS_RATE_LIMIT_WINDOW="1m"
//
// Optional integrations (Stripe, replica, Redis, Kafka) are disabled when
// their variable is empty.
//
// # Rules file
//
// CLIENTOPS_RULES_FILE names a YAML file with the business parameters:
//
//	health_weights:
//	  usage: 0.4
//	  payment: 0.4
//	  subscription: 0.2
//	dunning_thresholds:
//	  moderate: 3
//	  high: 7
//	  critical: 14
//	alerts:
//	  critical_stalls: 5
//	  critical_dunning: 3
//	  at_risk_share: 0.25
//	  min_recovery_rate: 0.5
//
// Omitted sections keep their defaults. WatchRules reloads the file when it
// changes and pushes valid updates to the registered appliers; an invalid
// edit is logged and the previous rules stay in effect.
package config
