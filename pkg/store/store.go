// Package store serves the raw portal snapshots kept in Postgres, so the
// datasets stay readable when the portal is down.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dsworkflows/chidata/pkg/table"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

var (
	// ErrUnknownResource is returned for a resource id without a backing table.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrUnknownColumn is returned when an order or distinct column does not exist.
	ErrUnknownColumn = errors.New("unknown column")
)

// DefaultLimit is the row count returned when the caller sets none.
const DefaultLimit = 3

// undefined_column
const pgUndefinedColumn = "42703"

// Resources maps portal resource ids to their snapshot tables.
var Resources = map[string]string{
	"r5kz-chrr": "business_license_raw",
	"4ijn-s7e5": "food_inspection_raw",
}

// TableFor resolves a resource id, with or without a ".csv" or ".json"
// suffix, to its table name.
func TableFor(id string) (string, error) {
	id = strings.TrimSuffix(strings.TrimSuffix(id, ".csv"), ".json")
	name, ok := Resources[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownResource, id)
	}
	return name, nil
}

// Config holds connection pool settings.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	PingTimeout     time.Duration
}

// DefaultConfig returns pool settings for dsn.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxConns:        4,
		MinConns:        0,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 5 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// Store reads snapshot tables.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   newPgxLogger(logger),
		LogLevel: traceLevel(logger),
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Str("db", poolConfig.ConnConfig.Database).
		Msg("Connected to PostgreSQL")

	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Query returns up to limit rows of the snapshot behind resource id, ordered
// by the order column when set. A non-positive limit means DefaultLimit.
func (s *Store) Query(ctx context.Context, id, order string, limit int) (*table.Table, error) {
	name, err := TableFor(id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.pool.Query(ctx, selectSQL(name, order), limit)
	if err != nil {
		return nil, mapError(err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, mapError(err)
	}

	records := make([]table.Record, len(maps))
	for i, m := range maps {
		r := make(table.Record, len(m))
		for k, v := range m {
			r[k] = normalize(v)
		}
		records[i] = r
	}

	s.logger.Debug().
		Str("resource", id).
		Str("order", order).
		Int("limit", limit).
		Int("rows", len(records)).
		Msg("Queried snapshot")

	return table.New(records), nil
}

// Distinct returns the sorted non-null values of column in the snapshot
// behind resource id.
func (s *Store) Distinct(ctx context.Context, id, column string) ([]string, error) {
	name, err := TableFor(id)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, distinctSQL(name, column))
	if err != nil {
		return nil, mapError(err)
	}
	values, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var v any
		if err := row.Scan(&v); err != nil {
			return "", err
		}
		return table.FormatValue(normalize(v))
	})
	if err != nil {
		return nil, mapError(err)
	}

	sort.Strings(values)
	return values, nil
}

func selectSQL(tableName, order string) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(pgx.Identifier{tableName}.Sanitize())
	if order != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(pgx.Identifier{order}.Sanitize())
	}
	b.WriteString(" LIMIT $1")
	return b.String()
}

func distinctSQL(tableName, column string) string {
	col := pgx.Identifier{column}.Sanitize()
	return fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL",
		col, pgx.Identifier{tableName}.Sanitize(), col)
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedColumn {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, pgErr.Message)
	}
	return fmt.Errorf("query snapshot: %w", err)
}

// normalize converts driver values to the scalar types used by table.Record.
func normalize(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format("2006-01-02T15:04:05.000")
	case []byte:
		return string(x)
	case pgtype.Numeric:
		b, err := x.MarshalJSON()
		if err != nil {
			return nil
		}
		if string(b) == "null" {
			return nil
		}
		return json.Number(b)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}
