// Package credential holds the session cookie shared by every request and
// keeps it fresh in the background.
package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/metrics"
)

// DefaultRefreshInterval is how often the Refresher reloads the cookie.
const DefaultRefreshInterval = 15 * time.Minute

// Snapshot is an immutable view of the credential.
type Snapshot struct {
	Cookie    string
	UpdatedAt time.Time
}

// Cell is a single-writer, multi-reader holder. Readers always observe a
// complete Snapshot.
type Cell struct {
	v atomic.Pointer[Snapshot]
}

// NewCell creates a cell holding cookie.
func NewCell(cookie string) *Cell {
	c := &Cell{}
	c.Store(cookie, time.Now())
	return c
}

// Load returns the current snapshot.
func (c *Cell) Load() Snapshot {
	if s := c.v.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

// Store replaces the snapshot.
func (c *Cell) Store(cookie string, at time.Time) {
	c.v.Store(&Snapshot{Cookie: cookie, UpdatedAt: at})
}

// FormatCookie renders name/value pairs as a Cookie header value.
func FormatCookie(values map[string]string) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+values[name])
	}
	return strings.Join(parts, "; ")
}

// Source produces a fresh cookie value.
type Source interface {
	Fetch(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (string, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) (string, error) { return f(ctx) }

// FileSource reads the cookie from a file, so an operator can replace it
// while a long run is in progress.
type FileSource string

// Fetch reads and trims the file.
func (p FileSource) Fetch(context.Context) (string, error) {
	raw, err := os.ReadFile(string(p))
	if err != nil {
		return "", fmt.Errorf("read cookie file: %w", err)
	}
	cookie := strings.TrimSpace(string(raw))
	if cookie == "" {
		return "", errors.New("cookie file is empty")
	}
	return cookie, nil
}

// Refresher periodically reloads the cell from a Source.
type Refresher struct {
	cell     *Cell
	source   Source
	interval time.Duration
	logger   *zap.Logger
}

// NewRefresher creates a Refresher. A non-positive interval uses
// DefaultRefreshInterval.
func NewRefresher(cell *Cell, source Source, interval time.Duration, logger *zap.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{cell: cell, source: source, interval: interval, logger: logger}
}

// Refresh reloads the cell once. On failure the previous value is kept.
func (r *Refresher) Refresh(ctx context.Context) error {
	cookie, err := r.source.Fetch(ctx)
	if err != nil {
		metrics.ObserveCredentialRefresh("error")
		return fmt.Errorf("refresh credential: %w", err)
	}
	r.cell.Store(cookie, time.Now())
	metrics.ObserveCredentialRefresh("ok")
	return nil
}

// Run refreshes on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Warn("credential refresh failed", zap.Error(err))
				continue
			}
			r.logger.Debug("credential refreshed")
		}
	}
}
