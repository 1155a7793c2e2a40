package config

import (
	"fmt"

	"go.uber.org/fx"
)

// NewProvider supplies the configuration to the fx graph. A non-nil config
// is used as-is (tests, hosts with their own loading); otherwise the
// environment is parsed and a failure surfaces as a graph construction error
// rather than a panic.
func NewProvider(customConfig *Config) fx.Option {
	if customConfig != nil {
		return fx.Provide(func() *Config {
			return customConfig
		})
	}

	return fx.Provide(func() (*Config, error) {
		cfg := &Config{}
		if err := LoadConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		return cfg, nil
	})
}
