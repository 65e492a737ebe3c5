package csvfile

import (
	"context"
	"encoding/csv"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/douyin-harvester/internal/schema"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestHeaderWrittenOnce(t *testing.T) {
	t.Parallel()

	noBOM := false
	cfg := Config{Dir: t.TempDir(), Name: "2024-01-01_用户搜索_cats", Kind: schema.SearchUsers, BOM: &noBOM}
	row := make([]any, len(schema.SearchUsers.Fields))
	for i := range row {
		row[i] = "v"
	}

	for range 2 {
		b := New(cfg)
		require.NoError(t, b.Open(context.Background()))
		require.NoError(t, b.Save(context.Background(), row))
		require.NoError(t, b.Close())
	}

	rows := readRows(t, New(cfg).Path())
	require.Len(t, rows, 3)
	assert.Equal(t, schema.SearchUsers.Titles(), rows[0])
	assert.Equal(t, rows[1], rows[2])
}

func TestBOMAndRename(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	withBOM := true
	first := New(Config{Dir: dir, Name: "2024-01-01_视频搜索_cats_综合排序_不限", Kind: schema.Works, BOM: &withBOM})
	require.NoError(t, first.Open(context.Background()))
	require.NoError(t, first.Close())

	raw, err := os.ReadFile(first.Path())
	require.NoError(t, err)
	assert.Equal(t, bom, string(raw[:len(bom)]))

	second := New(Config{
		Dir:  dir,
		Name: "2024-01-02_视频搜索_cats_最新发布_不限",
		Old:  "综合排序_不限",
		Kind: schema.Works,
		BOM:  &withBOM,
	})
	require.NoError(t, second.Open(context.Background()))
	require.NoError(t, second.Close())

	assert.NoFileExists(t, first.Path())
	after, err := os.ReadFile(second.Path())
	require.NoError(t, err)
	assert.Equal(t, raw, after, "renamed file is reused without a second header")
}

func TestSaveBeforeOpen(t *testing.T) {
	t.Parallel()

	b := New(Config{Dir: t.TempDir(), Name: "x", Kind: schema.Comments})
	require.Error(t, b.Save(context.Background(), []any{"a"}))
	require.NoError(t, b.Close())
}
