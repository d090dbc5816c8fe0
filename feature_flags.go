package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type FeatureFlags struct {
	SeasonalEvents bool `env:"ENABLE_SEASONAL_EVENTS" envDefault:"true"`
	Rating         bool `env:"ENABLE_RATING" envDefault:"true"`
	Telemetry      bool `env:"ENABLE_TELEMETRY" envDefault:"true"`
	DemoLogin      bool `env:"ENABLE_DEMO_LOGIN" envDefault:"true"`
}

func loadFeatureFlags() (FeatureFlags, error) {
	var flags FeatureFlags
	if err := env.Parse(&flags); err != nil {
		return FeatureFlags{}, fmt.Errorf("parse feature flags: %w", err)
	}
	return flags, nil
}
