// Package config loads service configuration from defaults, an optional
// config file, a .env file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the runtime configuration of the pricing server.
type Config struct {
	Port           string
	RequestTimeout time.Duration

	DatabaseURL string // empty → in-memory store
	RedisURL    string // empty → no cache
	RedisTTL    time.Duration

	KafkaBrokers []string // empty → events are dropped
	KafkaTopic   string

	Pricing Pricing
}

// Pricing configures the estimator and the sample limiter.
type Pricing struct {
	Workers        int   // concurrent blocks per call; 0 → GOMAXPROCS
	BlockSize      int   // paths per seeded block
	MaxSamples     int64 // per-request path limit
	MaxInFlight    int64 // aggregate path limit
	DefaultSamples int   // used when a request leaves samples at 0
}

// Keys map to environment variables by upper-casing and replacing "." with
// "_", e.g. pricing.block_size → PRICING_BLOCK_SIZE.
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("database_url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl", 5*time.Minute)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "pricing.runs")
	v.SetDefault("pricing.workers", 0)
	v.SetDefault("pricing.block_size", 1<<16)
	v.SetDefault("pricing.max_samples", 10_000_000)
	v.SetDefault("pricing.max_in_flight", 50_000_000)
	v.SetDefault("pricing.default_samples", 100_000)
}

// Load reads configuration. configFile may be empty. A .env file in the
// working directory is loaded first when present; variables already set in
// the environment win over it.
func Load(configFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("config: load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		Port:           v.GetString("port"),
		RequestTimeout: v.GetDuration("request_timeout"),
		DatabaseURL:    v.GetString("database_url"),
		RedisURL:       v.GetString("redis.url"),
		RedisTTL:       v.GetDuration("redis.ttl"),
		KafkaBrokers:   splitList(v.GetString("kafka.brokers")),
		KafkaTopic:     v.GetString("kafka.topic"),
		Pricing: Pricing{
			Workers:        v.GetInt("pricing.workers"),
			BlockSize:      v.GetInt("pricing.block_size"),
			MaxSamples:     v.GetInt64("pricing.max_samples"),
			MaxInFlight:    v.GetInt64("pricing.max_in_flight"),
			DefaultSamples: v.GetInt("pricing.default_samples"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port must be set"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	p := c.Pricing
	if p.Workers < 0 {
		errs = append(errs, errors.New("pricing.workers must not be negative"))
	}
	if p.BlockSize <= 0 {
		errs = append(errs, errors.New("pricing.block_size must be positive"))
	}
	if p.MaxSamples <= 0 {
		errs = append(errs, errors.New("pricing.max_samples must be positive"))
	}
	if p.MaxInFlight < p.MaxSamples {
		errs = append(errs, errors.New("pricing.max_in_flight must be at least pricing.max_samples"))
	}
	if p.DefaultSamples <= 0 || int64(p.DefaultSamples) > p.MaxSamples {
		errs = append(errs, errors.New("pricing.default_samples must be in (0, pricing.max_samples]"))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("kafka.topic must be set when brokers are configured"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
