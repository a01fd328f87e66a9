// Package sqlstore serves identifier configurations from a SQL table so
// that several pidops installations can share one set of definitions.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/go-sql-driver/mysql" // MySQL / MariaDB
	_ "github.com/lib/pq"              // PostgreSQL

	"github.com/systmms/pidops/internal/config"
	"github.com/systmms/pidops/pkg/identifier"
)

// DefaultTable is used when identifierSource.table is not set.
const DefaultTable = "pidops_identifiers"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// driverMap maps configured driver names to database/sql driver names.
var driverMap = map[string]string{
	"postgres":   "postgres",
	"postgresql": "postgres",
	"mysql":      "mysql",
	"mariadb":    "mysql",
}

// Store looks identifier configurations up by name. Every Get queries the
// table, so edits are picked up without a restart.
type Store struct {
	db     *sql.DB
	driver string
	table  string
}

// Open connects to the database described by cfg.
func Open(cfg config.IdentifierSourceConfig) (*Store, error) {
	driver, ok := driverMap[strings.ToLower(cfg.Driver)]
	if !ok {
		return nil, fmt.Errorf("unsupported identifier source driver: %s", cfg.Driver)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open identifier source: %w", err)
	}

	store, err := New(db, driver, cfg.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing connection. driver selects the placeholder style
// ("postgres" or "mysql").
func New(db *sql.DB, driver, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid identifier source table name: %q", table)
	}
	return &Store{db: db, driver: driver, table: table}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to identifier source: %w", err)
	}
	return nil
}

func (s *Store) placeholder() string {
	if s.driver == "postgres" {
		return "$1"
	}
	return "?"
}

// Get returns the configuration stored under name.
func (s *Store) Get(ctx context.Context, name string) (identifier.Config, error) {
	query := fmt.Sprintf(
		"SELECT name, entity_type, bundle, field, state_key, shoulder, credential_store FROM %s WHERE name = %s",
		s.table, s.placeholder(),
	)

	var (
		cfg             identifier.Config
		shoulder, store sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&cfg.Name, &cfg.EntityType, &cfg.Bundle, &cfg.Field, &cfg.StateKey, &shoulder, &store,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return identifier.Config{}, &identifier.ConfigError{
			Name:    name,
			Message: fmt.Sprintf("not found in identifier source table %s", s.table),
		}
	}
	if err != nil {
		return identifier.Config{}, &identifier.ConfigError{
			Name:    name,
			Message: "identifier source query failed",
			Err:     err,
		}
	}

	cfg.Shoulder = shoulder.String
	cfg.CredentialStore = store.String
	return cfg, nil
}

// Names lists every configuration name in the table, sorted.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT name FROM %s ORDER BY name", s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list identifier configurations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to read identifier configuration name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list identifier configurations: %w", err)
	}
	return names, nil
}
