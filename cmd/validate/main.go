package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jwebster45206/nusantara/internal/logger"
	"github.com/jwebster45206/nusantara/pkg/engine"
	"github.com/jwebster45206/nusantara/pkg/parser"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <script.ns|dir> ...\n", os.Args[0])
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	validator := NewScriptValidator(log)

	failed := false
	for _, arg := range os.Args[1:] {
		files, err := collect(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		for _, f := range files {
			if err := validator.validateFile(f); err != nil {
				fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
				failed = true
			}
		}
	}
	if err := validator.checkCommands(); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		failed = true
	}

	if failed {
		os.Exit(1)
	}
	fmt.Printf("%d script files are valid!\n", validator.files)
}

// collect expands a directory into its *.ns files
func collect(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := filepath.Glob(filepath.Join(path, "*"+engine.ScriptExt))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files in %s", engine.ScriptExt, path)
	}
	sort.Strings(files)
	return files, nil
}

type ScriptValidator struct {
	log      *slog.Logger
	files    int
	commands map[string][]string // command -> files declaring it
	errors   []string
}

func NewScriptValidator(log *slog.Logger) *ScriptValidator {
	return &ScriptValidator{log: log, commands: make(map[string][]string)}
}

func (v *ScriptValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)
	v.errors = nil

	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, engine.ScriptExt) {
		return fmt.Errorf("script file must have %s extension: %s", engine.ScriptExt, baseName)
	}
	if !isValidScriptFilename(strings.TrimSuffix(baseName, engine.ScriptExt)) {
		return fmt.Errorf("script filename '%s' must be lowercase snake_case (e.g., my_script.ns)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	p := parser.New(logger.WithScript(v.log, baseName))
	s, diags, err := p.ParseString(baseName, string(data))
	for _, d := range diags {
		v.errors = append(v.errors, "  "+d.String())
	}
	if err != nil && !errors.Is(err, parser.ErrNoContent) {
		return fmt.Errorf("file %s failed to parse: %w", filename, err)
	}
	if errors.Is(err, parser.ErrNoContent) {
		v.errors = append(v.errors, "  "+err.Error())
	}

	v.files++
	if s != nil {
		for _, cmd := range s.Commands {
			v.commands[cmd.Name] = append(v.commands[cmd.Name], baseName)
		}
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

// checkCommands reports commands declared by more than one file, since the
// last one loaded would silently win
func (v *ScriptValidator) checkCommands() error {
	var dupes []string
	for name, files := range v.commands {
		if len(files) > 1 {
			dupes = append(dupes, fmt.Sprintf("  /%s declared in %s", name, strings.Join(files, ", ")))
		}
	}
	if len(dupes) == 0 {
		return nil
	}
	sort.Strings(dupes)
	return fmt.Errorf("duplicate commands:\n%s", strings.Join(dupes, "\n"))
}

func isValidScriptFilename(name string) bool {
	return regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`).MatchString(name)
}
