// Package export ships finished datasets off the machine: dataset files are
// uploaded to object storage and a completion event is published.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Event describes a finished harvest run.
type Event struct {
	RunID      string    `json:"run_id"`
	Command    string    `json:"command"`
	Status     string    `json:"status"`
	Datasets   []string  `json:"datasets"`
	Records    int       `json:"records"`
	Objects    []string  `json:"objects,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`

	// Checksums maps object URIs to the SHA-256 of the uploaded file.
	Checksums map[string]string `json:"checksums,omitempty"`
}

// Uploader copies a local file into object storage and returns its URI.
type Uploader interface {
	Upload(ctx context.Context, localPath, objectName string) (string, error)
}

// Notifier publishes run events and returns the message id.
type Notifier interface {
	Notify(ctx context.Context, event Event) (string, error)
}

// Hasher digests a local file.
type Hasher interface {
	HashFile(path string) (string, error)
}

// Config configures an Exporter.
type Config struct {
	Uploader Uploader
	Notifier Notifier
	// Hasher, when set, records a checksum for every uploaded file.
	Hasher Hasher
	// Prefix is prepended to every object name.
	Prefix string
	// DeleteLocal removes dataset files after a successful upload.
	DeleteLocal bool
	Logger      *zap.Logger
}

// Exporter uploads dataset files and announces finished runs. A nil
// Uploader or Notifier disables that step.
type Exporter struct {
	uploader    Uploader
	notifier    Notifier
	hasher      Hasher
	prefix      string
	deleteLocal bool
	logger      *zap.Logger
}

// New builds an Exporter.
func New(cfg Config) *Exporter {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Exporter{
		uploader:    cfg.Uploader,
		notifier:    cfg.Notifier,
		hasher:      cfg.Hasher,
		prefix:      cfg.Prefix,
		deleteLocal: cfg.DeleteLocal,
		logger:      cfg.Logger,
	}
}

// Enabled reports whether any export step is configured.
func (e *Exporter) Enabled() bool {
	return e != nil && (e.uploader != nil || e.notifier != nil)
}

// ObjectName returns the object name used for a local file of a run.
func (e *Exporter) ObjectName(runID, localPath string) string {
	return path.Join(e.prefix, runID, filepath.Base(localPath))
}

// Export uploads files, fills event.Objects, and publishes the event. Every
// file is attempted; failures are joined into the returned error.
func (e *Exporter) Export(ctx context.Context, event Event, files []string) (Event, error) {
	if !e.Enabled() {
		return event, nil
	}
	var errs []error
	if e.uploader != nil {
		for _, file := range files {
			uri, err := e.uploader.Upload(ctx, file, e.ObjectName(event.RunID, file))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			event.Objects = append(event.Objects, uri)
			if e.hasher != nil {
				sum, err := e.hasher.HashFile(file)
				if err != nil {
					e.logger.Warn("checksum uploaded file", zap.String("file", file), zap.Error(err))
				} else {
					if event.Checksums == nil {
						event.Checksums = make(map[string]string)
					}
					event.Checksums[uri] = sum
				}
			}
			e.logger.Info("dataset uploaded", zap.String("file", file), zap.String("uri", uri))
			if e.deleteLocal {
				if err := os.Remove(file); err != nil {
					e.logger.Warn("remove uploaded file", zap.String("file", file), zap.Error(err))
				}
			}
		}
	}
	if e.notifier != nil {
		id, err := e.notifier.Notify(ctx, event)
		if err != nil {
			errs = append(errs, fmt.Errorf("notify run %s: %w", event.RunID, err))
		} else {
			e.logger.Info("run event published", zap.String("run_id", event.RunID), zap.String("message_id", id))
		}
	}
	return event, errors.Join(errs...)
}
