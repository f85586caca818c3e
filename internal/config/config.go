package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    slog.Level
	RawLogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Scripts
	ScriptsDir  string `env:"SCRIPTS_DIR" envDefault:"scripts"`
	ColorMarker string `env:"COLOR_MARKER" envDefault:"§"`
	Debug       bool   `env:"SCRIPT_DEBUG" envDefault:"false"`

	// Variable persistence
	VarsBackend    string `env:"VARS_BACKEND" envDefault:"yaml"`
	VarsFile       string `env:"VARS_FILE" envDefault:"variables.yml"`
	VarsSQLitePath string `env:"VARS_SQLITE_PATH" envDefault:"variables.db"`
	VarsKeyPrefix  string `env:"VARS_KEY_PREFIX" envDefault:"nusantara:vars:"`

	// Redis transport. Local runs events on the in-process loop without Redis.
	Local          bool   `env:"LOCAL" envDefault:"false"`
	RedisURL       string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	EventQueue     string `env:"EVENT_QUEUE" envDefault:"nusantara:events"`
	EffectsChannel string `env:"EFFECTS_CHANNEL" envDefault:"nusantara:effects"`
	EffectsMode    string `env:"EFFECTS_MODE" envDefault:"world"`
	WorkerID       string `env:"WORKER_ID"`

	// Tracing is off unless an endpoint is set
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"nusantara"`
}

// Effects modes
const (
	EffectsWorld  = "world"
	EffectsRemote = "remote"
)

// Load reads an optional .env file, then the environment
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv files. Missing files are ignored.
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.RawLogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	switch strings.ToLower(c.VarsBackend) {
	case "yaml", "redis", "sqlite", "memory":
	default:
		return fmt.Errorf("invalid VARS_BACKEND %q (want yaml, redis, sqlite or memory)", c.VarsBackend)
	}
	switch strings.ToLower(c.EffectsMode) {
	case EffectsWorld, EffectsRemote:
	default:
		return fmt.Errorf("invalid EFFECTS_MODE %q (want world or remote)", c.EffectsMode)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
