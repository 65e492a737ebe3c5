// Package storage defines the persistence contract shared by every dataset
// backend and selects a concrete backend from settings.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Backend persists the records of one dataset. Open must precede Save, and
// Close must be called on every path once Open has been attempted.
type Backend interface {
	Open(ctx context.Context) error
	Save(ctx context.Context, values []any) error
	Close() error
}

// With opens b, runs fn, and closes b whether or not fn succeeded.
func With(ctx context.Context, b Backend, fn func(Backend) error) (err error) {
	if err := b.Open(ctx); err != nil {
		return errors.Join(fmt.Errorf("open dataset: %w", err), b.Close())
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close dataset: %w", cerr))
		}
	}()
	return fn(b)
}

// Noop discards every row. It is selected when no storage format is set.
type Noop struct{}

// Open does nothing.
func (Noop) Open(context.Context) error { return nil }

// Save does nothing.
func (Noop) Save(context.Context, []any) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }

// Located is implemented by backends that write to a local file.
type Located interface {
	Path() string
}

// PathOf returns the local file written by b, if any.
func PathOf(b Backend) (string, bool) {
	l, ok := b.(Located)
	if !ok {
		return "", false
	}
	return l.Path(), true
}
