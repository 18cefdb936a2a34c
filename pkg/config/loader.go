package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the struct pointed to by cfg using
// its `env` and `envDefault` tags.
//
//	type Config struct {
//	    HTTPPort   int           `env:"CART_HTTP_PORT" envDefault:"8003"`
//	    SessionTTL time.Duration `env:"CART_SESSION_TTL" envDefault:"2h"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
