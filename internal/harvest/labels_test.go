package harvest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/douyin-harvester/internal/crawl"
)

func TestSearchName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  SearchRequest
		want string
	}{
		{"defaults", SearchRequest{Keyword: "猫"}, "2024-01-02 03.04.05_综合搜索_猫_综合排序_不限"},
		{"video latest week", SearchRequest{Keyword: "dog", Type: crawl.SearchVideo, SortType: 1, PublishTime: 7},
			"2024-01-02 03.04.05_视频搜索_dog_最新发布_一周内"},
		{"users", SearchRequest{Keyword: "k", Type: crawl.SearchUser, SortType: 2, PublishTime: 182},
			"2024-01-02 03.04.05_用户搜索_k_最多点赞_半年内"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := SearchName(startedAt, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := SearchName(startedAt, SearchRequest{})
	require.Error(t, err)
}

func TestSearchRequestNormalize(t *testing.T) {
	t.Parallel()

	got := SearchRequest{Keyword: "k", Type: 9, Pages: -2, SortType: 5, PublishTime: 3}.Normalize()
	assert.Equal(t, SearchRequest{Keyword: "k", Type: crawl.SearchGeneral, Pages: 1}, got)

	kept := SearchRequest{Keyword: "k", Type: crawl.SearchUser, Pages: 4, SortType: 2, PublishTime: 182}
	assert.Equal(t, kept, kept.Normalize())
}

func TestWorkIDs(t *testing.T) {
	t.Parallel()

	text := "see https://www.douyin.com/video/7300000000000000001 and " +
		"https://www.douyin.com/note/7300000000000000002?from=share " +
		"https://www.douyin.com/video/123"
	assert.Equal(t, []string{"7300000000000000001", "7300000000000000002"}, WorkIDs(text))
	assert.Empty(t, WorkIDs("nothing here"))
}

func TestCommentName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "作品42_评论数据", CommentName("42"))
}
