/*
Package config loads server and financing configuration.

PURPOSE:
  Centralizes everything an operator can tune: HTTP server settings, the
  database path, the financing terms frozen onto new applications, and the
  penalty accrual policy. Values come from an optional YAML file with
  environment-variable overrides (FINANCING_ prefix), falling back to
  defaults that match the shipped behavior.

USAGE:
  cfg, err := config.Load("config.yaml")
  // or config.Load("") to use defaults + environment only
*/
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/warp/financing-engine/engine"
	"github.com/warp/financing-engine/financing"
)

// Config is the fully resolved configuration tree.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Terms    TermsConfig    `mapstructure:"terms"`
	Penalty  PenaltyConfig  `mapstructure:"penalty"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	// Path is the SQLite database file; ":memory:" for ephemeral.
	Path string `mapstructure:"path"`
}

// TermsConfig mirrors financing.Terms with config-friendly types.
type TermsConfig struct {
	DownPaymentPercent float64 `mapstructure:"down_payment_percent"`
	InterestRate       float64 `mapstructure:"interest_rate"`
	ApplicationFee     float64 `mapstructure:"application_fee"`
	RatePeriod         string  `mapstructure:"rate_period"`
}

// PenaltyConfig mirrors engine.PenaltyConfig with config-friendly types.
type PenaltyConfig struct {
	RatePerPeriod float64 `mapstructure:"rate_per_period"`
	GraceDays     int     `mapstructure:"grace_days"`
	Policy        string  `mapstructure:"policy"`

	// Schedule is the cron expression for the accrual batch.
	Schedule string `mapstructure:"schedule"`
}

// Load reads configuration from the given file (optional) plus environment
// overrides, and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", "financing.db")
	v.SetDefault("terms.down_payment_percent", 20.0)
	v.SetDefault("terms.interest_rate", 5.0)
	v.SetDefault("terms.application_fee", 0.0)
	v.SetDefault("terms.rate_period", "monthly")
	v.SetDefault("penalty.rate_per_period", 0.05)
	v.SetDefault("penalty.grace_days", 0)
	v.SetDefault("penalty.policy", string(engine.PeriodPolicyCalendarMonth))
	v.SetDefault("penalty.schedule", "@daily")

	v.SetEnvPrefix("FINANCING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Terms.DownPaymentPercent < 0 || c.Terms.DownPaymentPercent > 100 {
		return fmt.Errorf("terms.down_payment_percent %.2f out of range", c.Terms.DownPaymentPercent)
	}
	if c.Terms.InterestRate < 0 {
		return fmt.Errorf("terms.interest_rate %.2f cannot be negative", c.Terms.InterestRate)
	}
	if c.Penalty.RatePerPeriod <= 0 {
		return fmt.Errorf("penalty.rate_per_period %.4f must be positive", c.Penalty.RatePerPeriod)
	}
	if c.Penalty.GraceDays < 0 {
		return fmt.Errorf("penalty.grace_days %d cannot be negative", c.Penalty.GraceDays)
	}
	if !engine.PeriodPolicy(c.Penalty.Policy).Valid() {
		return fmt.Errorf("penalty.policy %q is not a known policy", c.Penalty.Policy)
	}
	return nil
}

// FinancingTerms converts to the domain's term type.
func (c *Config) FinancingTerms() financing.Terms {
	return financing.Terms{
		DownPaymentPercent: decimal.NewFromFloat(c.Terms.DownPaymentPercent),
		InterestRate:       decimal.NewFromFloat(c.Terms.InterestRate),
		ApplicationFee:     decimal.NewFromFloat(c.Terms.ApplicationFee),
		RatePeriod:         c.Terms.RatePeriod,
	}
}

// EnginePenalty converts to the engine's penalty config.
func (c *Config) EnginePenalty() engine.PenaltyConfig {
	return engine.PenaltyConfig{
		RatePerPeriod: decimal.NewFromFloat(c.Penalty.RatePerPeriod),
		GraceDays:     c.Penalty.GraceDays,
		Policy:        engine.PeriodPolicy(c.Penalty.Policy),
	}
}
