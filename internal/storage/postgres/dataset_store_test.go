package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/douyin-harvester/internal/record"
	"github.com/JakeFAU/douyin-harvester/internal/schema"
)

func TestOpenRenamesAndUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	store, err := NewWithPool(mock, Config{
		Name: "2024-01-02_video_cats_latest_any",
		Old:  "general_any",
		Kind: schema.Comments,
	})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT table_name FROM information_schema.tables").
		WillReturnRows(pgxmock.NewRows([]string{"table_name"}).
			AddRow("2024-01-01_video_cats_general_any").
			AddRow("unrelated"))
	mock.ExpectExec("ALTER TABLE \"2024-01-01_video_cats_general_any\" RENAME TO").
		WillReturnResult(pgxmock.NewResult("ALTER", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	row := record.Comment{CID: "c1", Text: "hi"}.Values()
	mock.ExpectExec("INSERT INTO").
		WithArgs(row...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectClose()

	ctx := context.Background()
	require.NoError(t, store.Open(ctx))
	require.NoError(t, store.Save(ctx, row))
	require.NoError(t, store.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertStatement(t *testing.T) {
	t.Parallel()

	q := upsert("t", schema.Comments)
	assert.Contains(t, q, `ON CONFLICT ("cid") DO UPDATE SET "collection_time" = EXCLUDED."collection_time"`)
	assert.Contains(t, q, "$18)")
	assert.NotContains(t, upsert("t", schema.SearchUsers), "ON CONFLICT")
	assert.Contains(t, createTable("t", schema.Comments), `"user_age" BIGINT`)
}

func TestSaveBeforeOpen(t *testing.T) {
	t.Parallel()

	s := New(Config{Name: "t", Kind: schema.Works})
	require.Error(t, s.Save(context.Background(), nil))
	require.NoError(t, s.Close())

	_, err := NewWithPool(nil, Config{})
	require.Error(t, err)
}
