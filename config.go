package conduit

import "time"

// Config holds the configuration for a Conduit instance.
type Config struct {
	// Concurrency bounds the number of runs executing asynchronously.
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// CallTimeout bounds a single delivery attempt.
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout" mapstructure:"call_timeout"`

	// TokenTimeout bounds an OAuth2 token exchange.
	TokenTimeout time.Duration `json:"token_timeout" yaml:"token_timeout" mapstructure:"token_timeout"`

	// AlertTimeout bounds a failure alert.
	AlertTimeout time.Duration `json:"alert_timeout" yaml:"alert_timeout" mapstructure:"alert_timeout"`

	// ShutdownTimeout is the maximum time Stop waits for in-flight runs.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     10,
		CallTimeout:     15 * time.Second,
		TokenTimeout:    10 * time.Second,
		AlertTimeout:    5 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}
