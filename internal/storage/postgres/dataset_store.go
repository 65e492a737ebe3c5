// Package postgres provides a Postgres-backed dataset store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/schema"
	"github.com/JakeFAU/douyin-harvester/internal/storage/dataset"
)

// Config controls the connection pool and target table.
type Config struct {
	DSN             string
	Name            string
	Old             string
	Kind            schema.Kind
	MaxConns        int32
	MaxConnLifetime time.Duration
	Logger          *zap.Logger
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// DatasetStore upserts rows into one table per dataset. Columns use the
// schema keys.
type DatasetStore struct {
	cfg    Config
	logger *zap.Logger
	pool   pool
	insert string
}

// New creates a store that connects on Open.
func New(cfg Config) *DatasetStore {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasetStore{cfg: cfg, logger: logger}
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, cfg Config) (*DatasetStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	s := New(cfg)
	s.pool = p
	return s, nil
}

// Open connects if needed, renames a stale table, and creates the target.
func (s *DatasetStore) Open(ctx context.Context) error {
	if s.cfg.Name == "" {
		return errors.New("postgres table name is required")
	}
	if s.pool == nil {
		p, err := connect(ctx, s.cfg)
		if err != nil {
			return err
		}
		s.pool = p
	}
	if err := s.rename(ctx); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, createTable(s.cfg.Name, s.cfg.Kind)); err != nil {
		return fmt.Errorf("create table %s: %w", s.cfg.Name, err)
	}
	s.insert = upsert(s.cfg.Name, s.cfg.Kind)
	return nil
}

func connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, errors.New("storage.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return p, nil
}

func (s *DatasetStore) rename(ctx context.Context) error {
	if s.cfg.Old == "" {
		return nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema()`)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	stale, ok := dataset.Stale(names, s.cfg.Name, s.cfg.Old)
	if !ok {
		return nil
	}
	query := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", dataset.QuoteIdent(stale), dataset.QuoteIdent(s.cfg.Name))
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("rename table %s: %w", stale, err)
	}
	s.logger.Info("dataset renamed", zap.String("from", stale), zap.String("to", s.cfg.Name))
	return nil
}

func columnType(f schema.Field) string {
	def := "TEXT"
	if f.Type == "INTEGER" {
		def = "BIGINT"
	}
	if f.Primary {
		def += " PRIMARY KEY"
	}
	return def
}

func createTable(table string, kind schema.Kind) string {
	cols := make([]string, len(kind.Fields))
	for i, f := range kind.Fields {
		cols[i] = dataset.QuoteIdent(f.Key) + " " + columnType(f)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", dataset.QuoteIdent(table), strings.Join(cols, ", "))
}

func upsert(table string, kind schema.Kind) string {
	cols := make([]string, len(kind.Fields))
	args := make([]string, len(kind.Fields))
	for i, f := range kind.Fields {
		cols[i] = dataset.QuoteIdent(f.Key)
		args[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		dataset.QuoteIdent(table), strings.Join(cols, ", "), strings.Join(args, ", "))
	pk, ok := kind.PrimaryKey()
	if !ok {
		return query
	}
	var updates []string
	for _, f := range kind.Fields {
		if f.Primary {
			continue
		}
		col := dataset.QuoteIdent(f.Key)
		updates = append(updates, col+" = EXCLUDED."+col)
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s",
		query, dataset.QuoteIdent(pk.Key), strings.Join(updates, ", "))
}

// Save upserts one row.
func (s *DatasetStore) Save(ctx context.Context, values []any) error {
	if s.insert == "" {
		return errors.New("postgres dataset is not open")
	}
	if _, err := s.pool.Exec(ctx, s.insert, values...); err != nil {
		return fmt.Errorf("upsert row into %s: %w", s.cfg.Name, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *DatasetStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	s.pool, s.insert = nil, ""
	return nil
}
