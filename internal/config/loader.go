package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CRUDD_"

// CORS configures the opt-in CORS middleware.
type CORS struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled" env:"ENABLED"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins" env:"ALLOWED_ORIGINS"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods" env:"ALLOWED_METHODS"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers" env:"ALLOWED_HEADERS"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr" env:"ADDR"`
	ResourcesDir string `json:"resources_dir" yaml:"resources_dir" toml:"resources_dir" env:"RESOURCES_DIR"`
	// Driver is "memory" or "sqlite".
	Driver string `json:"driver" yaml:"driver" toml:"driver" env:"DRIVER"`
	DSN    string `json:"dsn" yaml:"dsn" toml:"dsn" env:"DSN"`
	// Prefix is the path every resource is mounted under, e.g. "/api".
	Prefix       string `json:"prefix" yaml:"prefix" toml:"prefix" env:"PREFIX"`
	Debug        bool   `json:"debug" yaml:"debug" toml:"debug" env:"DEBUG"`
	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	CORS         CORS   `json:"cors" yaml:"cors" toml:"cors" envPrefix:"CORS_"`

	// Listeners holds option tables keyed by listener name.
	Listeners map[string]map[string]any `json:"listeners" yaml:"listeners" toml:"listeners"`
	// Messages are merged over the orchestrator's default messages.
	Messages map[string]any `json:"messages" yaml:"messages" toml:"messages"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .jsonc, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(b), &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyEnv overlays CRUDD_* environment variables onto cfg. Unset
// variables leave the loaded value alone.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	return nil
}
