package source

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"regexp"

	"annual-reports-workers/internal/common/database"
	"annual-reports-workers/internal/common/errors"
	"annual-reports-workers/pkg/registry"
)

// ErrNoActiveVersion is returned when the registry table has no active row.
var ErrNoActiveVersion = stderrors.New("NO_ACTIVE_REGISTRY_VERSION")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Schema creates the registry version table. %s is the table name.
const Schema = `CREATE TABLE IF NOT EXISTS %s (
	id           BIGSERIAL PRIMARY KEY,
	version      TEXT        NOT NULL,
	payload      JSONB       NOT NULL,
	active       BOOLEAN     NOT NULL DEFAULT false,
	published_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresSource reads the newest active registry version from a table.
type PostgresSource struct {
	db    *database.PostgresClient
	table string
}

func NewPostgresSource(db *database.PostgresClient, table string) (*PostgresSource, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid registry table name %q", table)
	}
	return &PostgresSource{db: db, table: table}, nil
}

func (s *PostgresSource) Name() string { return "postgres" }

func (s *PostgresSource) Fetch(ctx context.Context) ([]byte, registry.Format, error) {
	query := fmt.Sprintf(
		"SELECT version, payload FROM %s WHERE active = true ORDER BY published_at DESC LIMIT 1",
		s.table,
	)

	var version string
	var payload []byte
	err := s.db.QueryRow(ctx, query).Scan(&version, &payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNoActiveVersion
	}
	if err != nil {
		return nil, "", errors.NewQueryExecutionFailedError("select active registry", err)
	}
	return payload, registry.FormatJSON, nil
}

// Publish stores reg as the only active version.
func Publish(ctx context.Context, db *database.PostgresClient, table string, reg *registry.Registry) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("invalid registry table name %q", table)
	}
	raw, err := reg.Raw()
	if err != nil {
		return fmt.Errorf("serialize registry: %w", err)
	}

	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET active = false WHERE active = true", table)); err != nil {
			return fmt.Errorf("deactivate versions: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (version, payload, active, published_at) VALUES ($1, $2, true, NOW())", table),
			reg.Version(), raw,
		); err != nil {
			return fmt.Errorf("insert version %s: %w", reg.Version(), err)
		}
		return nil
	})
}

// EnsureTable creates the registry version table when it is missing.
func EnsureTable(ctx context.Context, db *database.PostgresClient, table string) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("invalid registry table name %q", table)
	}
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(Schema, table)); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
		return nil
	})
}
