package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/schema"
	"github.com/JakeFAU/douyin-harvester/internal/storage/csvfile"
	"github.com/JakeFAU/douyin-harvester/internal/storage/postgres"
	"github.com/JakeFAU/douyin-harvester/internal/storage/sqlite"
	"github.com/JakeFAU/douyin-harvester/internal/storage/xlsx"
)

// Supported storage formats.
const (
	FormatNone     = ""
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
	FormatSQL      = "sql"
	FormatPostgres = "postgres"
)

// Formats lists every recognized storage format.
var Formats = []string{FormatNone, FormatCSV, FormatXLSX, FormatSQL, FormatPostgres}

// Options selects and configures a backend for one dataset.
type Options struct {
	Format string
	Dir    string
	Kind   schema.Kind
	Name   string
	// Old is the option suffix of an earlier dataset that should be renamed
	// to Name before writing.
	Old    string
	DSN    string
	Logger *zap.Logger
}

// New returns an unopened backend for opts.Format.
func New(opts Options) (Backend, error) {
	switch opts.Format {
	case FormatNone:
		return Noop{}, nil
	case FormatCSV:
		return csvfile.New(csvfile.Config{
			Dir: opts.Dir, Name: opts.Name, Old: opts.Old, Kind: opts.Kind, Logger: opts.Logger,
		}), nil
	case FormatXLSX:
		return xlsx.New(xlsx.Config{
			Dir: opts.Dir, Name: opts.Name, Old: opts.Old, Kind: opts.Kind, Logger: opts.Logger,
		}), nil
	case FormatSQL:
		return sqlite.New(sqlite.Config{
			Dir: opts.Dir, Name: opts.Name, Old: opts.Old, Kind: opts.Kind, Logger: opts.Logger,
		}), nil
	case FormatPostgres:
		return postgres.New(postgres.Config{
			DSN: opts.DSN, Name: opts.Name, Old: opts.Old, Kind: opts.Kind, Logger: opts.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown storage format %q", opts.Format)
	}
}

// Prepare ensures <root>/<folder> exists and returns it.
func Prepare(root, folder string) (string, error) {
	dir := filepath.Join(root, folder)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create data folder: %w", err)
	}
	return dir, nil
}
