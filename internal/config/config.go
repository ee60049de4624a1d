// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package config loads and validates Quill's configuration with the
// standard precedence: flag > environment (QUILL_) > file > defaults.
package config

import (
	"errors"
	"net"
	"strconv"
	"strings"

	quillerr "github.com/quill-dev/quill/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level Quill configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Storage StorageConfig `mapstructure:"storage"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
}

// APIConfig holds the completion endpoint settings. URL and Model default to
// empty so first use can resolve them interactively; the fixed fallbacks
// live in the completion package.
type APIConfig struct {
	URL         string  `mapstructure:"url"`
	Model       string  `mapstructure:"model"`
	Key         string  `mapstructure:"key"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// StorageConfig selects the prompt-template store backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// BridgeConfig controls the host bridge listener.
type BridgeConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// SetDefaults installs default values on a Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.temperature", 0.7)
	v.SetDefault("api.max_tokens", 1000)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("bridge.listen", "127.0.0.1:18790")
}

// SetupEnv binds environment variables with the QUILL_ prefix
// (QUILL_API_KEY, QUILL_BRIDGE_LISTEN, ...).
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("QUILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults when path is
// empty) with environment overrides applied.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, quillerr.Errorf(quillerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a populated Viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, quillerr.Errorf(quillerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, quillerr.Errorf(quillerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It collects all
// issues rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateAPI()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateBridge()...)

	return errs
}

func (c *Config) validateAPI() []error {
	var errs []error

	if c.API.Temperature < 0 || c.API.Temperature > 2 {
		errs = append(errs, quillerr.Errorf(quillerr.CodeConfigValidateInvalidValue,
			"config: api.temperature must be between 0 and 2, got %g",
			c.API.Temperature,
		))
	}

	if c.API.MaxTokens <= 0 {
		errs = append(errs, quillerr.Errorf(quillerr.CodeConfigValidateInvalidValue,
			"config: api.max_tokens must be greater than 0, got %d",
			c.API.MaxTokens,
		))
	}

	if c.API.URL != "" && !strings.HasPrefix(c.API.URL, "http://") && !strings.HasPrefix(c.API.URL, "https://") {
		errs = append(errs, quillerr.Errorf(quillerr.CodeConfigValidateInvalidValue,
			"config: api.url must be an http(s) URL, got %q",
			c.API.URL,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, quillerr.Errorf(quillerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, memory], got %q",
			c.Storage.Backend,
		))
	}

	return errs
}

func (c *Config) validateBridge() []error {
	var errs []error

	if c.Bridge.Listen == "" {
		errs = append(errs, quillerr.Errorf(quillerr.CodeConfigValidateInvalidValue, "config: bridge.listen must not be empty"))
		return errs
	}

	host, portStr, err := net.SplitHostPort(c.Bridge.Listen)
	if err != nil {
		errs = append(errs, quillerr.Errorf(quillerr.CodeConfigValidateInvalidValue,
			"config: bridge.listen must be a valid host:port address, got %q: %w",
			c.Bridge.Listen, err,
		))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, quillerr.Errorf(quillerr.CodeConfigValidateInvalidValue,
			"config: bridge.listen port must be a number, got %q",
			portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, quillerr.Errorf(quillerr.CodeConfigValidateInvalidValue,
			"config: bridge.listen port must be between 1 and 65535, got %d",
			port,
		))
	}

	// The bridge carries chat content and accepts intents; it must never
	// listen beyond loopback.
	if host != "" && host != "localhost" {
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			errs = append(errs, quillerr.Errorf(quillerr.CodeConfigValidateInvalidValue,
				"config: bridge.listen host must be a loopback address, got %q",
				host,
			))
		}
	}

	return errs
}
