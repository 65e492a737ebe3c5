package harvest

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/JakeFAU/douyin-harvester/internal/crawl"
	"github.com/JakeFAU/douyin-harvester/internal/storage/dataset"
)

// Sort orders accepted by general and video searches.
const (
	SortComprehensive = 0
	SortLatest        = 1
	SortMostLiked     = 2
)

var typeLabels = map[crawl.SearchType]string{
	crawl.SearchGeneral: "综合搜索",
	crawl.SearchVideo:   "视频搜索",
	crawl.SearchUser:    "用户搜索",
}

var sortLabels = map[int]string{
	SortComprehensive: "综合排序",
	SortLatest:        "最新发布",
	SortMostLiked:     "最多点赞",
}

var publishLabels = map[int]string{
	0:   "不限",
	1:   "一天内",
	7:   "一周内",
	182: "半年内",
}

// PublishWindows lists the accepted publish_time filters in days.
var PublishWindows = []int{0, 1, 7, 182}

// SearchRequest describes one search run.
type SearchRequest struct {
	Keyword     string           `json:"keyword"`
	Type        crawl.SearchType `json:"type"`
	Pages       int              `json:"pages"`
	SortType    int              `json:"sort_type"`
	PublishTime int              `json:"publish_time"`

	// RenameFrom is the option suffix of an earlier dataset for the same
	// keyword, e.g. "综合排序_不限". That dataset is renamed instead of
	// starting a new one.
	RenameFrom string `json:"rename_from,omitempty"`
}

// Normalize replaces unknown options with their defaults.
func (r SearchRequest) Normalize() SearchRequest {
	if !r.Type.Valid() {
		r.Type = crawl.SearchGeneral
	}
	if r.Pages < 1 {
		r.Pages = 1
	}
	if _, ok := sortLabels[r.SortType]; !ok {
		r.SortType = SortComprehensive
	}
	if !slices.Contains(PublishWindows, r.PublishTime) {
		r.PublishTime = 0
	}
	return r
}

// SearchName builds the dataset name of a search run started at at.
func SearchName(at time.Time, r SearchRequest) (string, error) {
	if r.Keyword == "" {
		return "", fmt.Errorf("search keyword is required")
	}
	typeLabel, ok := typeLabels[r.Type]
	if !ok {
		return "", fmt.Errorf("unknown search type %d", r.Type)
	}
	return dataset.Name(at, typeLabel, r.Keyword, sortLabels[r.SortType], publishLabels[r.PublishTime]), nil
}

// CommentName is the dataset name for the comments of one work.
func CommentName(workID string) string {
	return fmt.Sprintf("作品%s_评论数据", workID)
}

var workLink = regexp.MustCompile(`https://www\.douyin\.com/(?:video|note)/([0-9]{19})`)

// WorkIDs extracts work ids from share links, in order of appearance.
func WorkIDs(text string) []string {
	var ids []string
	for _, m := range workLink.FindAllStringSubmatch(text, -1) {
		ids = append(ids, m[1])
	}
	return ids
}
