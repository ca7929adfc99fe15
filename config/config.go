// Package config loads and validates the service configuration from a
// YAML or JSON file with optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"fleetguard/core/forecast"
	"fleetguard/core/metrics"
	"fleetguard/core/scheduler"
	"fleetguard/infra/mqtt"
	"fleetguard/infra/notify"
	"fleetguard/simulator"
)

type Config struct {
	Server    ServerConfig     `json:"server"`
	Storage   StorageConfig    `json:"storage"`
	MQTT      mqtt.Config      `json:"mqtt"`
	Scheduler scheduler.Config `json:"scheduler"`
	Forecast  forecast.Config  `json:"forecast"`
	Metrics   metrics.Config   `json:"metrics"`
	Notify    notify.Config    `json:"notify"`
	Logging   LoggingConfig    `json:"logging"`
	Simulator simulator.Config `json:"simulator"`
}

// ServerConfig holds the HTTP API listener settings.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `json:"backend"`
	// Path is the SQLite database file, ignored for the memory backend.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "sqlite"
	}
	if c.Path == "" {
		c.Path = "fleetguard.db"
	}
}

// Validate checks mandatory fields.
func (c StorageConfig) Validate() error {
	if c.Backend != "sqlite" && c.Backend != "memory" {
		return fmt.Errorf("unknown storage backend %s", c.Backend)
	}
	if c.Backend == "sqlite" && c.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	return nil
}

// Load reads the configuration file at path. Environment variables prefixed
// with FG_ override file values, with __ mapping to nesting (for example
// FG_SERVER__ADDR overrides server.addr).
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("FG_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fg_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Server.SetDefaults()
	cfg.Storage.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Scheduler.SetDefaults()
	cfg.Forecast.SetDefaults()
	cfg.Notify.SetDefaults()
	cfg.Logging.SetDefaults()
	cfg.Simulator.SetDefaults()
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Scheduler.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
