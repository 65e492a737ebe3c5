package payload_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/douyin-harvester/internal/payload"
)

const sample = `{
	"aweme_id": "7300000000000000001",
	"author": {"uid": 12345678901234567, "nickname": "alice"},
	"video": {
		"duration": 125000,
		"play_addr": {"url_list": ["https://a/1", "https://a/2"]}
	},
	"statistics": {"digg_count": 0, "share_count": 7},
	"images": [],
	"flag": false,
	"empty": ""
}`

func decode(t *testing.T) payload.Node {
	t.Helper()
	node, err := payload.Decode([]byte(sample))
	require.NoError(t, err)
	return node
}

func TestLookupResolvesNestedPaths(t *testing.T) {
	t.Parallel()
	node := decode(t)

	assert.Equal(t, "https://a/2", node.String("video.play_addr.url_list[-1]", ""))
	assert.Equal(t, "https://a/1", node.String("video.play_addr.url_list[0]", ""))
	assert.Equal(t, "12345678901234567", node.String("author.uid", ""))
	assert.Equal(t, int64(125000), node.Int("video.duration", 0))
	assert.Equal(t, int64(7), payload.Extract(node, "statistics.share_count", int64(0)))
}

func TestLookupFallsBackToDefault(t *testing.T) {
	t.Parallel()
	node := decode(t)

	cases := []string{
		"missing",
		"missing.deeper[-1].leaf",
		"video.play_addr.url_list[5]",
		"video.play_addr.url_list[-3]",
		"author.nickname[0]",
		"aweme_id.child",
		"images[-1].url_list[-1]",
		"video.play_addr.url_list[x]",
		"video.play_addr.url_list[-1",
		"statistics.digg_count",
		"flag",
		"empty",
		"",
	}
	for _, path := range cases {
		path := path
		t.Run(path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, "fallback", node.String(path, "fallback"))
			assert.Equal(t, int64(-9), node.Int(path, -9))
			_, ok := node.Lookup(path)
			assert.False(t, ok)
		})
	}
}

func TestNegativeIndexOnAbsentBranchReturnsDefault(t *testing.T) {
	t.Parallel()

	var empty payload.Node
	assert.Equal(t, "d", empty.String("a.b[-1].c", "d"))
	list := payload.FromAny(map[string]any{"a": []any{}})
	assert.Equal(t, "d", list.String("a[-1]", "d"))
	assert.Equal(t, "d", payload.Extract(list, "a[-1].b", "d"))
}

func TestItemsAndRaw(t *testing.T) {
	t.Parallel()
	node := decode(t)

	items := node.Items("video.play_addr.url_list")
	require.Len(t, items, 2)
	assert.Equal(t, "https://a/1", items[0].Text())
	assert.Nil(t, node.Items("images"))

	raw, ok := node.Get("author", payload.Node{}).Raw().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", raw["nickname"])
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := payload.Decode([]byte("<html>"))
	require.Error(t, err)
}

func TestFromAnyNumbers(t *testing.T) {
	t.Parallel()

	node := payload.FromAny(map[string]any{"i": 3, "f": 1.5, "b": true})
	assert.Equal(t, "3", node.String("i", ""))
	assert.Equal(t, "1.5", node.String("f", ""))
	assert.Equal(t, int64(1), node.Int("b", 0))
	assert.Equal(t, payload.Map, node.Kind())
	assert.Equal(t, 3, node.Len())
}
