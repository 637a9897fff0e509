package extension

import (
	"github.com/xraph/conduit"
)

// Config holds configuration for the Conduit extension. Fields can be set
// programmatically via ExtOption functions or decoded from a config file
// (the mapstructure tags match viper's keys).
type Config struct {
	// Config embeds the core conduit configuration.
	conduit.Config `json:",inline" yaml:",inline" mapstructure:",squash"`

	// BasePath is the URL prefix for all conduit routes (default: "/conduit").
	BasePath string `json:"base_path" yaml:"base_path" mapstructure:"base_path"`

	// DisableRoutes disables route registration with the Forge router.
	DisableRoutes bool `json:"disable_routes" yaml:"disable_routes" mapstructure:"disable_routes"`

	// DisableMigrate disables the store migration in Init.
	DisableMigrate bool `json:"disable_migrate" yaml:"disable_migrate" mapstructure:"disable_migrate"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Config:   conduit.DefaultConfig(),
		BasePath: "/conduit",
	}
}

// ToConduitOptions converts the non-zero fields of the embedded Config into
// conduit.Option values.
func (c Config) ToConduitOptions() []conduit.Option {
	var opts []conduit.Option

	if c.Concurrency > 0 {
		opts = append(opts, conduit.WithConcurrency(c.Concurrency))
	}
	if c.CallTimeout > 0 {
		opts = append(opts, conduit.WithCallTimeout(c.CallTimeout))
	}
	if c.TokenTimeout > 0 {
		opts = append(opts, conduit.WithTokenTimeout(c.TokenTimeout))
	}
	if c.AlertTimeout > 0 {
		opts = append(opts, conduit.WithAlertTimeout(c.AlertTimeout))
	}
	if c.ShutdownTimeout > 0 {
		opts = append(opts, conduit.WithShutdownTimeout(c.ShutdownTimeout))
	}

	return opts
}
