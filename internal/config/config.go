// Package config loads server configuration from a YAML file and environment
// variables. Priority: ENV > YAML > defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all server settings.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr" env:"VIGIL_ADDR" env-default:":8080"`

	// Backend selects the storage engine: bolt or sqlite.
	Backend string `yaml:"backend" env:"VIGIL_BACKEND" env-default:"bolt"`

	// DBPath is the database file path for either backend.
	DBPath string `yaml:"db_path" env:"VIGIL_DB_PATH" env-default:"vigil.db"`

	// RosterPath is the moderator roster JSON file. Empty disables
	// permission checks.
	RosterPath string `yaml:"roster_path" env:"VIGIL_ROSTER_PATH"`

	// MetricsInterval is how often gauge metrics are refreshed.
	MetricsInterval time.Duration `yaml:"metrics_interval" env:"VIGIL_METRICS_INTERVAL" env-default:"30s"`

	// Tracing settings. Endpoint empty disables export.
	TracingEndpoint string `yaml:"tracing_endpoint" env:"VIGIL_TRACING_ENDPOINT"`
	TracingInsecure bool   `yaml:"tracing_insecure" env:"VIGIL_TRACING_INSECURE" env-default:"true"`

	// LogLevel sets the zerolog global level.
	LogLevel string `yaml:"log_level" env:"VIGIL_LOG_LEVEL" env-default:"info"`
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Backend {
	case "bolt", "sqlite":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

// Load reads configuration. The YAML file path comes from VIGIL_CONFIG
// (fallback "./config.yaml"); a missing default file falls back to ENV only.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("VIGIL_CONFIG")
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		// No file, load from ENV + defaults only.
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}
