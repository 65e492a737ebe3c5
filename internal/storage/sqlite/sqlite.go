// Package sqlite stores datasets as tables inside one SQLite file per record
// kind. Columns carry the display titles so the file reads well in any
// SQLite browser.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/douyin-harvester/internal/schema"
	"github.com/JakeFAU/douyin-harvester/internal/storage/dataset"
)

// Config describes the table a Backend writes.
type Config struct {
	Dir    string
	Name   string
	Old    string
	Kind   schema.Kind
	Logger *zap.Logger
}

// Backend upserts rows into table Name of <Dir>/<Kind.DBFile>.
type Backend struct {
	cfg    Config
	logger *zap.Logger
	db     *sql.DB
	insert *sql.Stmt
}

// New creates an unopened Backend.
func New(cfg Config) *Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{cfg: cfg, logger: logger}
}

// Path returns the database file.
func (b *Backend) Path() string {
	return filepath.Join(b.cfg.Dir, b.cfg.Kind.DBFile)
}

// Open connects, renames a stale table, and creates the target table.
func (b *Backend) Open(ctx context.Context) (err error) {
	if b.cfg.Name == "" {
		return errors.New("sqlite table name is required")
	}
	if err := os.MkdirAll(b.cfg.Dir, 0o750); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	db, err := sql.Open("sqlite", b.Path())
	if err != nil {
		return fmt.Errorf("open sqlite database: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, db.Close())
		}
	}()
	// One connection keeps writes serialized on the file.
	db.SetMaxOpenConns(1)

	if err := b.rename(ctx, db); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, createTable(b.cfg.Name, b.cfg.Kind)); err != nil {
		return fmt.Errorf("create table %s: %w", b.cfg.Name, err)
	}
	stmt, err := db.PrepareContext(ctx, replaceInto(b.cfg.Name, b.cfg.Kind))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	b.db, b.insert = db, stmt
	return nil
}

func (b *Backend) rename(ctx context.Context, db *sql.DB) error {
	if b.cfg.Old == "" {
		return nil
	}
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	stale, ok := dataset.Stale(names, b.cfg.Name, b.cfg.Old)
	if !ok {
		return nil
	}
	query := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", dataset.QuoteIdent(stale), dataset.QuoteIdent(b.cfg.Name))
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("rename table %s: %w", stale, err)
	}
	b.logger.Info("dataset renamed", zap.String("from", stale), zap.String("to", b.cfg.Name))
	return nil
}

func createTable(table string, kind schema.Kind) string {
	cols := make([]string, len(kind.Fields))
	for i, f := range kind.Fields {
		cols[i] = dataset.QuoteIdent(f.Title) + " " + f.Definition()
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", dataset.QuoteIdent(table), strings.Join(cols, ", "))
}

func replaceInto(table string, kind schema.Kind) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(kind.Fields)), ", ")
	return fmt.Sprintf("REPLACE INTO %s VALUES (%s)", dataset.QuoteIdent(table), marks)
}

// Save inserts a row, replacing any row with the same primary key.
func (b *Backend) Save(ctx context.Context, values []any) error {
	if b.insert == nil {
		return errors.New("sqlite dataset is not open")
	}
	if _, err := b.insert.ExecContext(ctx, values...); err != nil {
		return fmt.Errorf("insert row into %s: %w", b.cfg.Name, err)
	}
	return nil
}

// Close releases the statement and connection.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	err := errors.Join(b.insert.Close(), b.db.Close())
	b.db, b.insert = nil, nil
	if err != nil {
		return fmt.Errorf("close sqlite dataset: %w", err)
	}
	return nil
}
