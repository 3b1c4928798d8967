package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Load reads configuration from environment variables, applies the
// documented defaults, and validates the result.
func Load() (*ServiceConfig, error) {
	var cfg ServiceConfig

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}
