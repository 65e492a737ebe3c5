package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "2024-01-02 03.04.05_视频搜索_cats_最新发布_不限", Name(at, "视频搜索", "cats", "最新发布", "不限"))
}

func TestStale(t *testing.T) {
	t.Parallel()

	existing := []string{
		"2024-01-01_video_keyword_综合_不限",
		"2023-12-01_video_keyword_综合_不限",
		"2024-01-01_video_other_综合_不限",
	}
	tests := []struct {
		name    string
		newName string
		old     string
		want    string
		ok      bool
	}{
		{"options changed", "2024-01-02_video_keyword_最新_不限", "综合_不限", "2024-01-01_video_keyword_综合_不限", true},
		{"no old suffix", "2024-01-02_video_keyword_最新_不限", "", "", false},
		{"same options", "2024-01-02_video_keyword_综合_不限", "综合_不限", "", false},
		{"no match", "2024-01-02_video_unknown_最新_不限", "综合_不限", "", false},
		{"target exists", "2024-01-01_video_other_综合_不限", "最新_不限", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Stale(existing, tc.newName, tc.old)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStaleShortName(t *testing.T) {
	t.Parallel()

	got, ok := Stale([]string{"2024_a_b"}, "2024_c", "a_b")
	require.True(t, ok)
	assert.Equal(t, "2024_a_b", got)
}

func TestRenameFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	old := filepath.Join(dir, "2024-01-01_video_keyword_综合_不限.csv")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o600))

	renamed, err := RenameFile(dir, ".csv", "2024-01-02_video_keyword_最新_不限", "综合_不限")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01_video_keyword_综合_不限", renamed)
	assert.NoFileExists(t, old)
	assert.FileExists(t, filepath.Join(dir, "2024-01-02_video_keyword_最新_不限.csv"))

	renamed, err = RenameFile(filepath.Join(dir, "missing"), ".csv", "2024_a", "b")
	require.NoError(t, err)
	assert.Empty(t, renamed)
}

func TestStringsAndQuote(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "", "7"}, Strings([]any{"a", nil, int64(7)}))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}
