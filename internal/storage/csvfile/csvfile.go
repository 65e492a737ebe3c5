// Package csvfile stores records as rows of a CSV file, one file per dataset.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/schema"
	"github.com/JakeFAU/douyin-harvester/internal/storage/dataset"
)

const (
	ext = ".csv"
	bom = "\ufeff"
)

// Config describes the dataset a Backend writes.
type Config struct {
	Dir  string
	Name string
	// Old is the option suffix of a dataset that should be renamed to Name.
	Old    string
	Kind   schema.Kind
	Logger *zap.Logger
	// BOM prefixes new files with a UTF-8 byte order mark. Defaults to true
	// on Windows so spreadsheet tools detect the encoding.
	BOM *bool
}

// Backend appends rows to <Dir>/<Name>.csv.
type Backend struct {
	cfg    Config
	logger *zap.Logger
	file   *os.File
	writer *csv.Writer
}

// New creates an unopened Backend.
func New(cfg Config) *Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{cfg: cfg, logger: logger}
}

// Path returns the file the backend writes.
func (b *Backend) Path() string {
	return filepath.Join(b.cfg.Dir, b.cfg.Name+ext)
}

// Open renames a stale dataset if needed, then opens the file for append and
// writes the header when the file is empty.
func (b *Backend) Open(_ context.Context) error {
	if b.cfg.Name == "" {
		return errors.New("csv dataset name is required")
	}
	if err := os.MkdirAll(b.cfg.Dir, 0o750); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	renamed, err := dataset.RenameFile(b.cfg.Dir, ext, b.cfg.Name, b.cfg.Old)
	if err != nil {
		return err
	}
	if renamed != "" {
		b.logger.Info("dataset renamed", zap.String("from", renamed), zap.String("to", b.cfg.Name))
	}
	f, err := os.OpenFile(b.Path(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open csv dataset: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return errors.Join(fmt.Errorf("stat csv dataset: %w", err), f.Close())
	}
	b.file = f
	b.writer = csv.NewWriter(f)
	if info.Size() > 0 {
		return nil
	}
	if b.bom() {
		if _, err := f.WriteString(bom); err != nil {
			return fmt.Errorf("write byte order mark: %w", err)
		}
	}
	return b.write(b.cfg.Kind.Titles())
}

func (b *Backend) bom() bool {
	if b.cfg.BOM != nil {
		return *b.cfg.BOM
	}
	return runtime.GOOS == "windows"
}

// Save appends one row.
func (b *Backend) Save(_ context.Context, values []any) error {
	if b.writer == nil {
		return errors.New("csv dataset is not open")
	}
	return b.write(dataset.Strings(values))
}

func (b *Backend) write(row []string) error {
	if err := b.writer.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	b.writer.Flush()
	if err := b.writer.Error(); err != nil {
		return fmt.Errorf("flush csv row: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (b *Backend) Close() error {
	if b.file == nil {
		return nil
	}
	b.writer.Flush()
	err := errors.Join(b.writer.Error(), b.file.Close())
	b.file, b.writer = nil, nil
	if err != nil {
		return fmt.Errorf("close csv dataset: %w", err)
	}
	return nil
}
