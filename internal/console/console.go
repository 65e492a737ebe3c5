// Package console reports progress and problems to the operator.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/jedib0t/go-pretty/v6/text"
	"go.uber.org/zap"
)

// Reporter receives operator-facing messages.
type Reporter interface {
	Info(format string, args ...any)
	Warning(format string, args ...any)
	Error(format string, args ...any)
}

// Nop discards every message.
type Nop struct{}

// Info does nothing.
func (Nop) Info(string, ...any) {}

// Warning does nothing.
func (Nop) Warning(string, ...any) {}

// Error does nothing.
func (Nop) Error(string, ...any) {}

// Zap forwards messages to a sugared logger.
type Zap struct {
	log *zap.SugaredLogger
}

// NewZap wraps logger. A nil logger discards output.
func NewZap(logger *zap.Logger) *Zap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Zap{log: logger.Sugar()}
}

// Info logs at info level.
func (z *Zap) Info(format string, args ...any) { z.log.Infof(format, args...) }

// Warning logs at warn level.
func (z *Zap) Warning(format string, args ...any) { z.log.Warnf(format, args...) }

// Error logs at error level.
func (z *Zap) Error(format string, args ...any) { z.log.Errorf(format, args...) }

// Writer prints colored lines to an io.Writer, usually the terminal.
type Writer struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

// NewWriter creates a Writer. Color is applied only when color is true.
func NewWriter(out io.Writer, color bool) *Writer {
	return &Writer{out: out, color: color}
}

func (w *Writer) print(colors text.Colors, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if w.color && len(colors) > 0 {
		msg = colors.Sprint(msg)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = fmt.Fprintln(w.out, msg)
}

// Info prints a plain message.
func (w *Writer) Info(format string, args ...any) { w.print(nil, format, args...) }

// Warning prints a yellow message.
func (w *Writer) Warning(format string, args ...any) { w.print(text.Colors{text.FgYellow}, format, args...) }

// Error prints a red message.
func (w *Writer) Error(format string, args ...any) { w.print(text.Colors{text.FgRed}, format, args...) }

// Multi fans messages out to several reporters.
type Multi []Reporter

// Info forwards to every reporter.
func (m Multi) Info(format string, args ...any) {
	for _, r := range m {
		r.Info(format, args...)
	}
}

// Warning forwards to every reporter.
func (m Multi) Warning(format string, args ...any) {
	for _, r := range m {
		r.Warning(format, args...)
	}
}

// Error forwards to every reporter.
func (m Multi) Error(format string, args ...any) {
	for _, r := range m {
		r.Error(format, args...)
	}
}
