/*
Package config loads runtime configuration from the environment.

PURPOSE:
  One flat struct, parsed once at startup. A .env file in the working
  directory is honored for local development; real deployments set the
  variables directly.
*/
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP listen address, host:port.
	Addr string `env:"LEAVE_ADDR" envDefault:":8080"`

	// Path to the SQLite database file.
	DBPath string `env:"LEAVE_DB_PATH" envDefault:"leave.db"`

	// Chat platform web API. When Token is empty the server logs
	// notifications instead of delivering them.
	ChatBaseURL string `env:"LEAVE_CHAT_BASE_URL" envDefault:"https://slack.com/api"`
	ChatToken   string `env:"LEAVE_CHAT_TOKEN"`

	// Shared secret for verifying inbound slash-command webhooks.
	// When empty, signature verification is skipped (development only).
	SigningSecret string `env:"LEAVE_SIGNING_SECRET"`

	// Cron expression for the periodic manager accrual pass.
	AccrualSchedule string `env:"LEAVE_ACCRUAL_SCHEDULE" envDefault:"0 3 1 1 *"`
}

// Load reads .env (if present) and parses the environment.
func Load() (Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
