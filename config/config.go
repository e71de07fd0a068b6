/*
config.go - Runtime configuration

PURPOSE:
  Loads settings from environment variables (optionally seeded from a
  .env file by the caller) with sane defaults, via viper.

VARIABLES:
  ENGINE_PORT                 HTTP listen port        (default 8080)
  ENGINE_DB_PATH              SQLite database file    (default condotel.db)
  ENGINE_SETTLEMENT_INTERVAL  Sweep cadence           (default 1h)
  ENGINE_SCHEDULER_ENABLED    Run background sweeps   (default true)
*/
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               int
	DBPath             string
	SettlementInterval time.Duration
	SchedulerEnabled   bool
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ENGINE")
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("DB_PATH", "condotel.db")
	v.SetDefault("SETTLEMENT_INTERVAL", "1h")
	v.SetDefault("SCHEDULER_ENABLED", true)

	interval, err := time.ParseDuration(v.GetString("SETTLEMENT_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("parsing ENGINE_SETTLEMENT_INTERVAL: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("ENGINE_SETTLEMENT_INTERVAL must be positive, got %s", interval)
	}

	return &Config{
		Port:               v.GetInt("PORT"),
		DBPath:             v.GetString("DB_PATH"),
		SettlementInterval: interval,
		SchedulerEnabled:   v.GetBool("SCHEDULER_ENABLED"),
	}, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
