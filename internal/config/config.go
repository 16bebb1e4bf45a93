// Package config defines the global configuration for the coaching platform
// API. Configuration is loaded once at process initialization and is immutable
// thereafter, following 12-Factor principles: values come from the OS
// environment (highest priority) or a local .env file, are parsed via
// envconfig struct tags, and are validated with go-playground/validator.
// Any missing required value fails startup immediately.
package config

import (
	"time"

	"alathletics/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// startup and never modified. Sub-components receive only the specific config
// subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server     ServerConfig
	Database   DatabaseConfig
	Billing    BillingConfig
	Scheduling SchedulingConfig
	Metrics    MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	// Origins allowed to call the API from a browser (the storefront and the
	// coaching dashboard).
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds Postgres connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// BillingConfig holds Stripe credentials and the plan catalog price ids.
// The nine price ids form the plan registry's immutable table; every id is
// validated against the provider catalog at startup (fail fast on drift).
// Defaults are Stripe test-mode placeholders for local development.
type BillingConfig struct {
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	// Skip the startup catalog check (local dev without Stripe access only).
	SkipCatalogCheck bool `envconfig:"BILLING_SKIP_CATALOG_CHECK" default:"false"`

	FoundationMonthlyPriceID    string `envconfig:"PRICE_FOUNDATION_MONTHLY" default:"price_foundation_monthly"`
	FoundationSemiannualPriceID string `envconfig:"PRICE_FOUNDATION_SEMIANNUAL" default:"price_foundation_semiannual"`
	FoundationAnnualPriceID     string `envconfig:"PRICE_FOUNDATION_ANNUAL" default:"price_foundation_annual"`
	GrowthMonthlyPriceID        string `envconfig:"PRICE_GROWTH_MONTHLY" default:"price_growth_monthly"`
	GrowthSemiannualPriceID     string `envconfig:"PRICE_GROWTH_SEMIANNUAL" default:"price_growth_semiannual"`
	GrowthAnnualPriceID         string `envconfig:"PRICE_GROWTH_ANNUAL" default:"price_growth_annual"`
	EliteMonthlyPriceID         string `envconfig:"PRICE_ELITE_MONTHLY" default:"price_elite_monthly"`
	EliteSemiannualPriceID      string `envconfig:"PRICE_ELITE_SEMIANNUAL" default:"price_elite_semiannual"`
	EliteAnnualPriceID          string `envconfig:"PRICE_ELITE_ANNUAL" default:"price_elite_annual"`
}

// SchedulingConfig holds the bookable window and display timezone for
// coaching sessions. Appointments are stored in UTC; the display timezone is
// the coach's local zone and drives slot label computation.
type SchedulingConfig struct {
	DisplayTimezone string `envconfig:"SCHEDULING_TIMEZONE" default:"America/Los_Angeles"`
	// Window bounds, inclusive on both ends, as HH:MM labels.
	WindowOpen  string `envconfig:"SCHEDULING_WINDOW_OPEN" default:"08:00"`
	WindowClose string `envconfig:"SCHEDULING_WINDOW_CLOSE" default:"18:00"`
}

// MetricsConfig holds request telemetry settings. Metrics are published to
// CloudWatch when enabled; local environments default to the no-op collector.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"METRICS_ENABLED" default:"false"`
	Namespace string `envconfig:"METRIC_NAMESPACE" default:"ALAthletics"`
	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`
}
