package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/douyin-harvester/internal/payload"
	"github.com/JakeFAU/douyin-harvester/internal/schema"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type rowRecorder struct {
	rows [][]any
	err  error
}

func (r *rowRecorder) Save(_ context.Context, values []any) error {
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, values)
	return nil
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(Config{
		DateFormat: "%Y-%m-%d %H:%M:%S",
		Location:   time.UTC,
		Clock:      fixedClock{t: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		Cleaner:    newCleaner("linux"),
	})
	require.NoError(t, err)
	return e
}

func mustDecode(t *testing.T, raw string) payload.Node {
	t.Helper()
	n, err := payload.Decode([]byte(raw))
	require.NoError(t, err)
	return n
}

const videoWork = `{
	"aweme_id": "7300000000000000001",
	"desc": "  hello\n   world  #tag\t",
	"create_time": 1700000000,
	"author": {"uid": "1", "sec_uid": "MS4", "short_id": "0", "unique_id": "alice01",
		"signature": "sig", "user_age": 23, "nickname": "  Alice😀 "},
	"music": {"author": "band", "title": "song", "play_url": {"url_list": ["m1", "m2"]}},
	"statistics": {"digg_count": 10, "comment_count": 2, "collect_count": 0, "share_count": 1},
	"video_tag": [{"tag_name": "t1"}, {"tag_name": "t2"}],
	"text_extra": [{"hashtag_name": "go"}, {"hashtag_name": ""}, {"hashtag_name": "crawl"}],
	"video": {
		"duration": 125000,
		"play_addr": {"url_list": ["v1", "v2"]},
		"dynamic_cover": {"url_list": ["d1"]},
		"origin_cover": {"url_list": ["o1", "o2"]}
	},
	"anchor_info": {"title": "<shop>"}
}`

func TestWorksVideo(t *testing.T) {
	t.Parallel()
	e := newTestExtractor(t)
	rec := &rowRecorder{}

	works, err := e.Works(context.Background(), []payload.Node{mustDecode(t, videoWork)}, rec)
	require.NoError(t, err)
	require.Len(t, works, 1)
	require.Len(t, rec.rows, 1)
	require.Len(t, rec.rows[0], len(schema.Works.Fields))

	w := works[0]
	assert.Equal(t, TypeVideo, w.Type)
	assert.Equal(t, "2024-01-02 03:04:05", w.CollectionTime)
	assert.Equal(t, "hello world #tag", w.Desc)
	assert.Equal(t, "2023-11-14 22:13:20", w.CreateTime)
	assert.Equal(t, "go, crawl", w.TextExtra)
	assert.Equal(t, "00:02:05", w.Duration)
	assert.Equal(t, "v2", w.Downloads)
	assert.Equal(t, "d1", w.DynamicCover)
	assert.Equal(t, "o2", w.OriginCover)
	assert.Equal(t, "m2", w.MusicURL)
	assert.Equal(t, [3]string{"t1", "t2", ""}, w.Tags)
	assert.Equal(t, "10", w.DiggCount)
	assert.Equal(t, "0", w.CollectCount)
	assert.Equal(t, "Alice", w.Nickname)
	assert.Equal(t, int64(23), w.UserAge)
	assert.Equal(t, "{\n  \"title\": \"<shop>\"\n}", w.Extra)
}

func TestWorksGalleryAndDefaults(t *testing.T) {
	t.Parallel()
	e := newTestExtractor(t)
	rec := &rowRecorder{}

	items := []payload.Node{
		mustDecode(t, `{"aweme_id": "g1", "images": [{"url_list": ["a", "a2"]}, {"url_list": ["b"]}],
			"video": {"duration": 9000, "play_addr": {"url_list": ["x"]}}}`),
		mustDecode(t, `{"aweme_id": "g2", "image_post_info": {"images": [{"display_image": {"url_list": ["p1", "p2"]}}]}}`),
	}
	works, err := e.Works(context.Background(), items, rec)
	require.NoError(t, err)
	require.Len(t, works, 2)

	assert.Equal(t, TypeGallery, works[0].Type)
	assert.Equal(t, "a2 b", works[0].Downloads)
	assert.Equal(t, "00:00:00", works[0].Duration)
	assert.Empty(t, works[0].DynamicCover)
	assert.Empty(t, works[0].OriginCover)
	assert.Equal(t, "g1", works[0].Desc, "empty description falls back to id")
	assert.Equal(t, "已注销账号", works[0].Nickname)
	assert.Equal(t, "2024-01-02 03:04:05", works[0].CreateTime, "missing create_time uses now")
	assert.Empty(t, works[0].Extra)

	assert.Equal(t, TypeGallery, works[1].Type)
	assert.Equal(t, "p2", works[1].Downloads)
}

func TestSearchGeneralClassification(t *testing.T) {
	t.Parallel()
	e := newTestExtractor(t)
	rec := &rowRecorder{}

	items := []payload.Node{
		mustDecode(t, `{"aweme_info": {"aweme_id": "1"}}`),
		mustDecode(t, `{"aweme_mix_info": {"mix_items": [{"aweme_id": "2"}, {"aweme_id": "3"}]}}`),
		mustDecode(t, `{"card_info": {"attached_info": {"aweme_list": [{"aweme_id": "4"}]}}}`),
		mustDecode(t, `{"user_list": [{"items": [{"aweme_id": "5"}]}]}`),
		mustDecode(t, `{"unknown": true}`),
	}
	works, err := e.SearchGeneral(context.Background(), items, rec)
	require.NoError(t, err)
	ids := make([]string, 0, len(works))
	for _, w := range works {
		ids = append(ids, w.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids)
	assert.Len(t, rec.rows, 5)
}

func TestSearchGeneralReusesRepeatedAuthor(t *testing.T) {
	t.Parallel()
	e := newTestExtractor(t)

	items := []payload.Node{
		mustDecode(t, `{"aweme_info": {"aweme_id": "1", "author": {"sec_uid": "s", "nickname": "first"}}}`),
		mustDecode(t, `{"aweme_info": {"aweme_id": "2", "author": {"sec_uid": "s", "nickname": "renamed"}}}`),
	}
	works, err := e.SearchGeneral(context.Background(), items, &rowRecorder{})
	require.NoError(t, err)
	require.Len(t, works, 2)
	assert.Equal(t, "first", works[1].Nickname)
	assert.Equal(t, "first", works[1].Mark)
}

func TestSearchUsers(t *testing.T) {
	t.Parallel()
	e := newTestExtractor(t)
	rec := &rowRecorder{}

	items := []payload.Node{
		mustDecode(t, `{"user_info": {"uid": "9", "nickname": "bob", "avatar_thumb": {"url_list": ["thumb"]},
			"avatar_larger": {"url_list": ["large"]}, "follower_count": 12, "custom_verify": "creator"}}`),
	}
	users, err := e.SearchUsers(context.Background(), items, rec)
	require.NoError(t, err)
	require.Len(t, users, 1)
	u := users[0]
	assert.Equal(t, "thumb", u.Avatar)
	assert.Equal(t, "creator", u.Verify)
	assert.Equal(t, "无", u.Enterprise)
	assert.Equal(t, "12", u.FollowerCount)
	assert.Equal(t, "0", u.TotalFavorited)
	require.Len(t, rec.rows[0], len(schema.SearchUsers.Fields))
}

func TestCommentsCollectReplyRefs(t *testing.T) {
	t.Parallel()
	e := newTestExtractor(t)
	rec := &rowRecorder{}

	items := []payload.Node{
		mustDecode(t, `{"cid": "A", "reply_comment_total": "2", "text": "hi", "user": {"nickname": "u"},
			"image_list": [{"origin_url": {"url_list": ["i1", "i2"]}}], "sticker": {"static_url": {"url_list": ["s1"]}}}`),
		mustDecode(t, `{"cid": "B", "reply_comment_total": "0", "ip_label": "北京"}`),
	}
	comments, refs, err := e.Comments(context.Background(), items, rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, refs)
	require.Len(t, comments, 2)
	assert.Equal(t, "i2", comments[0].Image)
	assert.Equal(t, "s1", comments[0].Sticker)
	assert.Equal(t, "未知", comments[0].IPLabel)
	assert.Equal(t, "北京", comments[1].IPLabel)
	assert.Equal(t, "0", comments[1].ReplyCommentTotal)
	assert.Equal(t, "0", comments[1].DiggCount)
	require.Len(t, rec.rows[0], len(schema.Comments.Fields))

	assert.Equal(t, []string{"A"}, ReplyRefs(items))
}

func TestRecorderFailureStopsExtraction(t *testing.T) {
	t.Parallel()
	e := newTestExtractor(t)
	boom := errors.New("disk full")

	_, _, err := e.Comments(context.Background(), []payload.Node{mustDecode(t, `{"cid": "A"}`)}, &rowRecorder{err: boom})
	require.ErrorIs(t, err, boom)

	_, err = e.Works(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrNoRecorder)
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00:02:05", FormatDuration(125000))
	assert.Equal(t, "01:00:01", FormatDuration(3601999))
	assert.Equal(t, "00:00:00", FormatDuration(-5))
}

func TestCleaner(t *testing.T) {
	t.Parallel()

	linux := newCleaner("linux")
	assert.Equal(t, "a:b", linux.Filter("a/:b\n"))
	windows := newCleaner("windows")
	assert.Equal(t, "ab", windows.Filter("a/:b\n"))
	assert.Equal(t, "fallback", linux.FilterName(" ..😀.. ", "fallback"))
	assert.Equal(t, "a b", ClearSpaces("  a \t  b "))
}

func TestNewRejectsBadDateFormat(t *testing.T) {
	t.Parallel()

	_, err := New(Config{DateFormat: "%Q"})
	require.Error(t, err)
}
