package storage

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultScriptsDir is used when no scripts directory is configured
const DefaultScriptsDir = "scripts"

//go:embed samples/*.ns
var samples embed.FS

// Samples returns the bundled example scripts
func Samples() fs.FS {
	sub, err := fs.Sub(samples, "samples")
	if err != nil {
		panic(fmt.Sprintf("embedded samples: %v", err))
	}
	return sub
}

// OpenScripts returns dir as a filesystem, creating it when missing
func OpenScripts(dir string) (fs.FS, error) {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultScriptsDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scripts directory: %w", err)
	}
	return os.DirFS(dir), nil
}

// WriteSamples copies the bundled scripts into dir when it holds no
// scripts yet. It returns the names written.
func WriteSamples(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultScriptsDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scripts directory: %w", err)
	}

	existing, err := filepath.Glob(filepath.Join(dir, "*.ns"))
	if err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}
	if len(existing) > 0 {
		return nil, nil
	}

	src := Samples()
	names, err := fs.Glob(src, "*.ns")
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}

	var written []string
	for _, name := range names {
		data, err := fs.ReadFile(src, name)
		if err != nil {
			return written, fmt.Errorf("failed to read sample %s: %w", name, err)
		}
		target := filepath.Join(dir, name)
		if _, err := os.Stat(target); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return written, fmt.Errorf("failed to stat %s: %w", target, err)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return written, fmt.Errorf("failed to write sample %s: %w", name, err)
		}
		written = append(written, name)
	}
	return written, nil
}
