package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/douyin-harvester/internal/schema"
)

func TestKindsAreConsistent(t *testing.T) {
	t.Parallel()

	for _, kind := range []schema.Kind{schema.Works, schema.Comments, schema.SearchUsers} {
		kind := kind
		t.Run(kind.Name, func(t *testing.T) {
			t.Parallel()
			keys := kind.Keys()
			titles := kind.Titles()
			require.Len(t, titles, len(keys))
			seen := make(map[string]struct{}, len(keys))
			for _, k := range keys {
				_, dup := seen[k]
				assert.False(t, dup, "duplicate key %s", k)
				seen[k] = struct{}{}
			}
			assert.NotEmpty(t, kind.DBFile)
		})
	}
}

func TestPrimaryKeys(t *testing.T) {
	t.Parallel()

	pk, ok := schema.Works.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "id", pk.Key)
	assert.Equal(t, "TEXT PRIMARY KEY", pk.Definition())

	pk, ok = schema.Comments.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "cid", pk.Key)

	_, ok = schema.SearchUsers.PrimaryKey()
	assert.False(t, ok)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	kind, ok := schema.Lookup(" Comment ")
	require.True(t, ok)
	assert.Equal(t, schema.Comments.Name, kind.Name)

	_, ok = schema.Lookup("nope")
	assert.False(t, ok)
}
