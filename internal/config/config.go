// Package config loads the sales engine configuration from the environment.
//
// Every variable may be given with the SALES_ prefix (SALES_PORT) or bare
// (PORT); the prefixed form wins.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/atmx/sales-engine/internal/analysis"
)

// Prefix is the environment variable prefix.
const Prefix = "SALES"

// Config is the complete service configuration.
type Config struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	LogLevel       slog.Level    `envconfig:"LOG_LEVEL" default:"INFO"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`

	// Empty DatabaseURL selects the in-memory store.
	DatabaseURL string        `envconfig:"DATABASE_URL"`
	RedisURL    string        `envconfig:"REDIS_URL"`
	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"30s"`

	// Empty AMQPURL disables event publishing to RabbitMQ.
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"sales.events"`

	ClampDiscount bool        `envconfig:"CLAMP_DISCOUNT" default:"false"`
	Bonus         BonusConfig `envconfig:"BONUS"`
}

// BonusConfig holds the profit share paid per rank tier.
type BonusConfig struct {
	Leader decimal.Decimal `envconfig:"LEADER" default:"0.15"`
	Podium decimal.Decimal `envconfig:"PODIUM" default:"0.10"`
	Rest   decimal.Decimal `envconfig:"REST" default:"0.05"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: port must not be empty")
	}
	if c.CacheTTL <= 0 {
		return errors.New("config: cache TTL must be positive")
	}
	for name, rate := range map[string]decimal.Decimal{
		"leader": c.Bonus.Leader,
		"podium": c.Bonus.Podium,
		"rest":   c.Bonus.Rest,
	} {
		if rate.IsNegative() {
			return fmt.Errorf("config: %s bonus rate must not be negative, got %s", name, rate)
		}
	}
	return nil
}

// AnalysisOptions builds the revenue and bonus policies selected by the
// configuration.
func (c *Config) AnalysisOptions() analysis.Options {
	opts := analysis.Options{
		Revenue: analysis.SimpleRevenue,
		Bonus: analysis.ProfitTiers{
			Leader: c.Bonus.Leader,
			Podium: c.Bonus.Podium,
			Rest:   c.Bonus.Rest,
		},
	}
	if c.ClampDiscount {
		opts.Revenue = analysis.ClampedRevenue
	}
	return opts
}
