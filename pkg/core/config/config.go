// Package config loads service configuration from an optional .env file, a YAML file and
// environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v2"

	"deal_proforma/pkg/core/series"
	"deal_proforma/pkg/core/waterfall"
)

type ServerConfig struct {
	Addr string `yaml:"addr" env:"PROFORMA_ADDR"`
}

type EngineConfig struct {
	HorizonMonths int `yaml:"horizon_months" env:"PROFORMA_HORIZON_MONTHS"`
}

type WaterfallConfig struct {
	NOIMode          string  `yaml:"noi_mode" env:"PROFORMA_NOI_MODE"`
	PreferredRatePct float64 `yaml:"preferred_rate_pct" env:"PROFORMA_PREFERRED_RATE_PCT"`
	AccrualPeriod    string  `yaml:"accrual_period" env:"PROFORMA_ACCRUAL_PERIOD"`
	LPSharePct       float64 `yaml:"lp_share_pct" env:"PROFORMA_LP_SHARE_PCT"`
}

type DatabaseConfig struct {
	URL        string `yaml:"url" env:"DATABASE_URL"`
	SQLitePath string `yaml:"sqlite_path" env:"PROFORMA_SQLITE_PATH"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB"`
	DedupTTL time.Duration `yaml:"dedup_ttl" env:"REDIS_DEDUP_TTL"`
}

type MQConfig struct {
	URL   string `yaml:"url" env:"AMQP_URL"`
	Queue string `yaml:"queue" env:"PROFORMA_MQ_QUEUE"`
}

type ScheduleConfig struct {
	AccrualCron string `yaml:"accrual_cron" env:"PROFORMA_ACCRUAL_CRON"`
}

// Config is the full service configuration.
type Config struct {
	Env       string          `yaml:"env" env:"PROFORMA_ENV"`
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Waterfall WaterfallConfig `yaml:"waterfall"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	MQ        MQConfig        `yaml:"mq"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Env:    "production",
		Server: ServerConfig{Addr: ":8080"},
		Engine: EngineConfig{HorizonMonths: 60},
		Waterfall: WaterfallConfig{
			NOIMode:          string(waterfall.NOIDistribution),
			PreferredRatePct: 8,
			AccrualPeriod:    string(waterfall.Monthly),
			LPSharePct:       50,
		},
		Database: DatabaseConfig{SQLitePath: "proforma.db"},
		Redis:    RedisConfig{DedupTTL: 24 * time.Hour},
		MQ:       MQConfig{Queue: "waterfall.events.q"},
		Schedule: ScheduleConfig{AccrualCron: "0 0 1 * *"},
	}
}

// Load builds the configuration. A missing YAML file is not an error; an empty path skips it.
func Load(path string) (*Config, error) {
	// 1. Optional .env
	_ = godotenv.Load()

	cfg := Default()

	// 2. YAML file
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("decode config %s: %w", path, err)
			}
		}
	}

	// 3. Environment overrides
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and that enumerated settings are known.
func (c *Config) Validate() error {
	if c.Engine.HorizonMonths <= 0 || c.Engine.HorizonMonths > series.MaxHorizon {
		return fmt.Errorf("engine.horizon_months must be within [1,%d], got %d", series.MaxHorizon, c.Engine.HorizonMonths)
	}
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("waterfall.noi_mode: %w", err)
	}
	if err := c.AccrualRule().Validate(); err != nil {
		return fmt.Errorf("waterfall: %w", err)
	}
	if c.Waterfall.LPSharePct < 0 || c.Waterfall.LPSharePct > 100 {
		return fmt.Errorf("waterfall.lp_share_pct must be within [0,100], got %v", c.Waterfall.LPSharePct)
	}
	if _, err := cron.ParseStandard(c.Schedule.AccrualCron); err != nil {
		return fmt.Errorf("schedule.accrual_cron: %w", err)
	}
	return nil
}

// Policy is the configured waterfall policy.
func (c *Config) Policy() (waterfall.Policy, error) {
	mode, err := waterfall.ParseNOIMode(c.Waterfall.NOIMode)
	if err != nil {
		return waterfall.Policy{}, err
	}
	return waterfall.Policy{NOIMode: mode}, nil
}

// AccrualRule is the configured preferred-return rule.
func (c *Config) AccrualRule() waterfall.AccrualRule {
	return waterfall.AccrualRule{
		RatePct: c.Waterfall.PreferredRatePct,
		Period:  waterfall.AccrualPeriod(c.Waterfall.AccrualPeriod),
	}
}
