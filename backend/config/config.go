// Package config resolves process settings from flags, CHATAPP_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "CHATAPP"

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

type Config struct {
	APIListenAddr string `mapstructure:"api-listen-addr" validate:"required"`
	WSListenAddr  string `mapstructure:"ws-listen-addr" validate:"required"`
	AllowedOrigin string `mapstructure:"allowed-origin"`
	DBPath        string `mapstructure:"db-path" validate:"required"`
	JWTSecret     string `mapstructure:"jwt-secret" validate:"required"`
	LogLevel      string `mapstructure:"log-level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	OutboundQueue int    `mapstructure:"outbound-queue" validate:"gt=0"`
}

// Load parses args (without program name). pflag.ErrHelp is returned as is.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("chatapp", pflag.ContinueOnError)
	fs.StringP("api-listen-addr", "a", ":8080", "api listen address")
	fs.StringP("ws-listen-addr", "w", ":8888", "websocket signaling listen address")
	fs.StringP("allowed-origin", "o", "*", "allowed websocket and CORS origin")
	fs.StringP("db-path", "d", "chatapp.db", "sqlite database file")
	fs.String("jwt-secret", "", "secret for signing login tokens")
	fs.StringP("log-level", "l", "debug", "log level")
	fs.Int("outbound-queue", 256, "per-connection outbound frame queue size")
	configFile := fs.StringP("config", "c", "", "optional config file (yaml, json, toml)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	return cfg, nil
}
