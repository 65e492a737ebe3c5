// Package xlsx stores records in the first sheet of an Excel workbook.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/schema"
	"github.com/JakeFAU/douyin-harvester/internal/storage/dataset"
)

const ext = ".xlsx"

// Config describes the workbook a Backend writes.
type Config struct {
	Dir    string
	Name   string
	Old    string
	Kind   schema.Kind
	Logger *zap.Logger
}

// Backend appends rows to <Dir>/<Name>.xlsx. Rows are buffered in the
// workbook and written to disk on Close.
type Backend struct {
	cfg    Config
	logger *zap.Logger
	book   *excelize.File
	sheet  string
	next   int
}

// New creates an unopened Backend.
func New(cfg Config) *Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{cfg: cfg, logger: logger}
}

// Path returns the workbook location.
func (b *Backend) Path() string {
	return filepath.Join(b.cfg.Dir, b.cfg.Name+ext)
}

// Open loads the workbook, creating it when missing, and writes the header
// row into an empty sheet.
func (b *Backend) Open(_ context.Context) error {
	if b.cfg.Name == "" {
		return errors.New("xlsx dataset name is required")
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

	book, err := excelize.OpenFile(b.Path())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		book = excelize.NewFile()
	case err != nil:
		return fmt.Errorf("open workbook: %w", err)
	}
	sheet := book.GetSheetName(0)
	rows, err := book.GetRows(sheet)
	if err != nil {
		return errors.Join(fmt.Errorf("read workbook rows: %w", err), book.Close())
	}
	b.book, b.sheet, b.next = book, sheet, len(rows)+1
	if len(rows) == 0 {
		return b.append(b.cfg.Kind.TitleRow())
	}
	return nil
}

// Save appends one row.
func (b *Backend) Save(_ context.Context, values []any) error {
	if b.book == nil {
		return errors.New("xlsx dataset is not open")
	}
	return b.append(values)
}

func (b *Backend) append(values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, b.next)
	if err != nil {
		return fmt.Errorf("locate row %d: %w", b.next, err)
	}
	if err := b.book.SetSheetRow(b.sheet, cell, &values); err != nil {
		return fmt.Errorf("write xlsx row: %w", err)
	}
	b.next++
	return nil
}

// Close saves the workbook to disk.
func (b *Backend) Close() error {
	if b.book == nil {
		return nil
	}
	var errs []error
	if err := b.book.SaveAs(b.Path()); err != nil {
		errs = append(errs, fmt.Errorf("save workbook: %w", err))
	}
	if err := b.book.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close workbook: %w", err))
	}
	b.book = nil
	return errors.Join(errs...)
}
