package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config carries deployment-time settings. The auth signing secret is read
// separately by the auth package (SITEVISOR_AUTH_SECRET) so it never
// travels through config structs or logs.
type Config struct {
	Addr        string `env:"SITEVISOR_ADDR" envDefault:":8080"`
	PostgresDSN string `env:"SITEVISOR_PG_DSN"`

	// Values surfaced to dashboard clients via /v1/info.
	PaymentPublicKey string `env:"SITEVISOR_PAYMENT_PUBLIC_KEY"`
	SupportPhone     string `env:"SITEVISOR_SUPPORT_PHONE"`

	MediaRoot string `env:"SITEVISOR_MEDIA_ROOT" envDefault:"./media"`

	RateBurst  int `env:"SITEVISOR_RATE_BURST" envDefault:"40"`
	RatePerSec int `env:"SITEVISOR_RATE_PER_SEC" envDefault:"20"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
