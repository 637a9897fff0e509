package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/xraph/conduit/extension"
)

// EnvPrefix prefixes every environment override, e.g. CONDUIT_ADDR.
const EnvPrefix = "CONDUIT"

// serverConfig is the standalone server configuration.
type serverConfig struct {
	extension.Config `mapstructure:",squash"`

	Addr       string `mapstructure:"addr"`
	LogLevel   string `mapstructure:"log_level"`
	LogFormat  string `mapstructure:"log_format"`
	RoutesFile string `mapstructure:"routes_file"`

	// AlertBrokers, when set, also publishes alerts to AlertTopic.
	AlertBrokers string `mapstructure:"alert_brokers"`
	AlertTopic   string `mapstructure:"alert_topic"`
}

func loadConfig(file string) (*serverConfig, error) {
	v := viper.New()

	def := extension.DefaultConfig()
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("routes_file", "")
	v.SetDefault("alert_brokers", "")
	v.SetDefault("alert_topic", "conduit.alerts")
	v.SetDefault("base_path", def.BasePath)
	v.SetDefault("disable_routes", def.DisableRoutes)
	v.SetDefault("disable_migrate", def.DisableMigrate)
	v.SetDefault("concurrency", def.Concurrency)
	v.SetDefault("call_timeout", def.CallTimeout)
	v.SetDefault("token_timeout", def.TokenTimeout)
	v.SetDefault("alert_timeout", def.AlertTimeout)
	v.SetDefault("shutdown_timeout", def.ShutdownTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg serverConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func (c *serverConfig) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
