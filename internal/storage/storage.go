package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/nusantara/pkg/vars"
)

// Backend names accepted by Open
const (
	BackendYAML   = "yaml"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// VariableStore persists script variables between runs
type VariableStore interface {
	vars.Persistence

	// Ping tests the backend connection
	Ping(ctx context.Context) error

	// Close releases the backend
	Close() error
}

// Options selects and configures a VariableStore
type Options struct {
	Backend    string
	File       string // yaml
	SQLitePath string // sqlite
	RedisURL   string // redis
	KeyPrefix  string // redis
}

// Open creates the VariableStore named by opts.Backend
func Open(ctx context.Context, opts Options, logger *slog.Logger) (VariableStore, error) {
	switch strings.ToLower(opts.Backend) {
	case BackendYAML, "":
		return NewYAMLVariables(opts.File, logger), nil
	case BackendRedis:
		r, err := NewRedisVariables(ctx, opts.RedisURL, opts.KeyPrefix, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case BackendSQLite:
		s, err := OpenSQLiteVariables(opts.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return NewMemoryVariables(), nil
	default:
		return nil, fmt.Errorf("unknown variable backend %q", opts.Backend)
	}
}
