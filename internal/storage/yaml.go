package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultVariablesFile is used when no path is configured
const DefaultVariablesFile = "variables.yml"

// variablesDocument is the on-disk layout:
//
//	global:
//	  motd: Halo
//	player:
//	  <entity id>:
//	    skor: "3.0"
type variablesDocument struct {
	Global map[string]string            `yaml:"global"`
	Player map[string]map[string]string `yaml:"player"`
}

// YAMLVariables keeps variables in a single YAML file
type YAMLVariables struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

var _ VariableStore = (*YAMLVariables)(nil)

func NewYAMLVariables(path string, logger *slog.Logger) *YAMLVariables {
	if path == "" {
		path = DefaultVariablesFile
	}
	return &YAMLVariables{path: path, logger: logger}
}

func (y *YAMLVariables) Path() string {
	return y.path
}

// Load reads the file. A missing file yields empty scopes.
func (y *YAMLVariables) Load(ctx context.Context) (map[string]string, map[string]map[string]string, error) {
	y.mu.Lock()
	defer y.mu.Unlock()

	data, err := os.ReadFile(y.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			y.logger.Debug("Variables file not found, starting empty", "path", y.path)
			return map[string]string{}, map[string]map[string]string{}, nil
		}
		return nil, nil, fmt.Errorf("failed to read variables file: %w", err)
	}

	var doc variablesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse variables file %s: %w", y.path, err)
	}
	if doc.Global == nil {
		doc.Global = map[string]string{}
	}
	if doc.Player == nil {
		doc.Player = map[string]map[string]string{}
	}
	return doc.Global, doc.Player, nil
}

// Save replaces the file contents. The write goes to a temporary file first
// so a crash never leaves a truncated file behind.
func (y *YAMLVariables) Save(ctx context.Context, global map[string]string, entities map[string]map[string]string) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	data, err := yaml.Marshal(variablesDocument{Global: global, Player: entities})
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	dir := filepath.Dir(y.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create variables directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".variables-*.yml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write variables: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), y.path); err != nil {
		return fmt.Errorf("failed to replace variables file: %w", err)
	}

	y.logger.Debug("Variables file written", "path", y.path, "bytes", len(data))
	return nil
}

// Ping checks that the file's directory is usable
func (y *YAMLVariables) Ping(ctx context.Context) error {
	info, err := os.Stat(filepath.Dir(y.path))
	if err != nil {
		return fmt.Errorf("variables directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(y.path))
	}
	return nil
}

func (y *YAMLVariables) Close() error {
	return nil
}
