package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jwebster45206/nusantara/internal/storage/migrations"
	"github.com/jwebster45206/nusantara/internal/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// DefaultSQLitePath is used when no path is configured
const DefaultSQLitePath = "variables.db"

// globalScope is the scope column value for global variables
const globalScope = ""

// SQLiteVariables stores variables in a SQLite table keyed by (scope, name)
type SQLiteVariables struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ VariableStore = (*SQLiteVariables)(nil)

// OpenSQLiteVariables opens the database at path and applies migrations
func OpenSQLiteVariables(path string, logger *slog.Logger) (*SQLiteVariables, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultSQLitePath
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), db, migrations.FS, ""); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("SQLite variable store opened", "path", path)
	return &SQLiteVariables{db: db, logger: logger}, nil
}

func (s *SQLiteVariables) Load(ctx context.Context) (map[string]string, map[string]map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT scope, name, value FROM variables ORDER BY scope, name")
	if err != nil {
		return nil, nil, fmt.Errorf("query variables: %w", err)
	}
	defer rows.Close()

	global := make(map[string]string)
	entities := make(map[string]map[string]string)
	for rows.Next() {
		var scope, name, value string
		if err := rows.Scan(&scope, &name, &value); err != nil {
			return nil, nil, fmt.Errorf("scan variable: %w", err)
		}
		if scope == globalScope {
			global[name] = value
			continue
		}
		if entities[scope] == nil {
			entities[scope] = make(map[string]string)
		}
		entities[scope][name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate variables: %w", err)
	}
	return global, entities, nil
}

// Save replaces the table contents in one transaction
func (s *SQLiteVariables) Save(ctx context.Context, global map[string]string, entities map[string]map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM variables"); err != nil {
		return fmt.Errorf("clear variables: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO variables (scope, name, value, updated_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().UnixMilli()
	insert := func(scope string, values map[string]string) error {
		for name, value := range values {
			if _, err := stmt.ExecContext(ctx, scope, name, value, now); err != nil {
				return fmt.Errorf("insert %s/%s: %w", scope, name, err)
			}
		}
		return nil
	}
	if err := insert(globalScope, global); err != nil {
		return err
	}
	for id, values := range entities {
		if id == globalScope {
			continue
		}
		if err := insert(id, values); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (s *SQLiteVariables) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteVariables) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
