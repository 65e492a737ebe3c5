package credential

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellConcurrentAccess(t *testing.T) {
	t.Parallel()

	cell := NewCell("a=1")
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if i == 0 {
					cell.Store("a=2", time.Now())
					continue
				}
				got := cell.Load().Cookie
				assert.Contains(t, []string{"a=1", "a=2"}, got)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, "a=2", cell.Load().Cookie)
	assert.Equal(t, Snapshot{}, (&Cell{}).Load())
}

func TestFormatCookie(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a=1; b=2", FormatCookie(map[string]string{"b": "2", "a": "1"}))
	assert.Empty(t, FormatCookie(nil))
}

func TestRefreshKeepsPreviousOnFailure(t *testing.T) {
	t.Parallel()

	cell := NewCell("old")
	failing := NewRefresher(cell, SourceFunc(func(context.Context) (string, error) {
		return "", errors.New("offline")
	}), 0, nil)
	require.Error(t, failing.Refresh(context.Background()))
	assert.Equal(t, "old", cell.Load().Cookie)

	path := filepath.Join(t.TempDir(), "cookie.txt")
	require.NoError(t, os.WriteFile(path, []byte(" s=1 \n"), 0o600))
	fromFile := NewRefresher(cell, FileSource(path), 0, nil)
	require.NoError(t, fromFile.Refresh(context.Background()))
	assert.Equal(t, "s=1", cell.Load().Cookie)

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	require.Error(t, fromFile.Refresh(context.Background()))
}

func TestRunRefreshesOnTick(t *testing.T) {
	t.Parallel()

	cell := NewCell("start")
	var calls atomic.Int32
	r := NewRefresher(cell, SourceFunc(func(context.Context) (string, error) {
		calls.Add(1)
		return "fresh", nil
	}), 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return cell.Load().Cookie == "fresh" }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Positive(t, calls.Load())
}
