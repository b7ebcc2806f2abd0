// Package config loads vtscan settings from VTSCAN_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v8"
	"github.com/charmbracelet/log"
)

// Prefix is prepended to every variable name.
const Prefix = "VTSCAN_"

// Config holds settings shared by the CLI and tests.
type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" json:"logLevel" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	LogPrefix   string `env:"LOG_PREFIX" envDefault:"vtscan " json:"logPrefix"`
	LogToFile   bool   `env:"LOG_TO_FILE" json:"logToFile" jsonschema:"description=Write logs to a timestamped file instead of stderr"`
	NoColor     bool   `env:"NO_COLOR" json:"noColor"`
	Profile     bool   `env:"PROFILE" json:"profile" jsonschema:"description=Serve pprof on ProfileAddr"`
	ProfileAddr string `env:"PROFILE_ADDR" envDefault:"localhost:6060" json:"profileAddr"`
	Fixtures    string `env:"TEST_FIXTURES" json:"fixtures,omitempty" jsonschema:"description=Directory with sample binaries for integration tests"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom reads the configuration from environ instead of the process
// environment. Keys carry the VTSCAN_ prefix.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if _, err := cfg.Level(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Level returns the configured log level.
func (c Config) Level() (log.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("%sLOG_LEVEL: unknown level %q", Prefix, c.LogLevel)
	}
}

// IsDebug reports whether debug logging is enabled.
func (c Config) IsDebug() bool {
	lvl, _ := c.Level()
	return lvl == log.DebugLevel
}
