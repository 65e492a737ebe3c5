// Package extract converts raw upstream payloads into normalized records and
// hands every assembled record to a Recorder as soon as it is built.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/payload"
	"github.com/JakeFAU/douyin-harvester/internal/record"
)

// Labels written into the work type column.
const (
	TypeGallery = "图集"
	TypeVideo   = "视频"
)

const (
	defaultNickname = "已注销账号"
	invalidNickname = "无效账号昵称"
	unknownIPLabel  = "未知"
	noneLabel       = "无"
	zeroDuration    = "00:00:00"
)

// ErrNoRecorder is returned when extraction is invoked without a Recorder.
var ErrNoRecorder = errors.New("extract: recorder is required")

// Recorder receives one row per assembled record.
type Recorder interface {
	Save(ctx context.Context, values []any) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Config controls formatting of extracted values.
type Config struct {
	// DateFormat is a strftime pattern, e.g. "%Y-%m-%d %H:%M:%S".
	DateFormat string
	Location   *time.Location
	Clock      Clock
	Cleaner    *Cleaner
	Logger     *zap.Logger
}

// Extractor assembles records from payload nodes.
type Extractor struct {
	dateFormat *strftime.Strftime
	location   *time.Location
	clock      Clock
	cleaner    *Cleaner
	logger     *zap.Logger
}

// New builds an Extractor.
func New(cfg Config) (*Extractor, error) {
	if cfg.DateFormat == "" {
		cfg.DateFormat = "%Y-%m-%d %H:%M:%S"
	}
	f, err := strftime.New(cfg.DateFormat)
	if err != nil {
		return nil, fmt.Errorf("parse date format %q: %w", cfg.DateFormat, err)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = wallClock{}
	}
	if cfg.Cleaner == nil {
		cfg.Cleaner = NewCleaner()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Extractor{
		dateFormat: f,
		location:   cfg.Location,
		clock:      cfg.Clock,
		cleaner:    cfg.Cleaner,
		logger:     cfg.Logger,
	}, nil
}

// batch carries per-call state: the shared collection time and the last
// resolved account for the "same as previous" shortcut.
type batch struct {
	ctx       context.Context
	rec       Recorder
	collected string
	last      *record.Account
	saved     int
}

func (e *Extractor) newBatch(ctx context.Context, rec Recorder) (*batch, error) {
	if rec == nil {
		return nil, ErrNoRecorder
	}
	return &batch{ctx: ctx, rec: rec, collected: e.collectionTime()}, nil
}

func (b *batch) save(r record.Record) error {
	if err := b.rec.Save(b.ctx, r.Values()); err != nil {
		return fmt.Errorf("save %s record: %w", r.Kind().Name, err)
	}
	b.saved++
	return nil
}

// Works extracts one work per item.
func (e *Extractor) Works(ctx context.Context, items []payload.Node, rec Recorder) ([]record.Work, error) {
	b, err := e.newBatch(ctx, rec)
	if err != nil {
		return nil, err
	}
	out := make([]record.Work, 0, len(items))
	for _, item := range items {
		w, err := e.work(b, item)
		if err != nil {
			return out, err
		}
		out = append(out, w)
	}
	return out, nil
}

// SearchGeneral extracts works from general or video search results. A
// result may hold one work, a mix, a card, or a user block of works.
func (e *Extractor) SearchGeneral(ctx context.Context, items []payload.Node, rec Recorder) ([]record.Work, error) {
	b, err := e.newBatch(ctx, rec)
	if err != nil {
		return nil, err
	}
	var out []record.Work
	for _, item := range items {
		for _, node := range classifySearchResult(item) {
			w, err := e.work(b, node)
			if err != nil {
				return out, err
			}
			out = append(out, w)
		}
	}
	e.logger.Debug("search results extracted", zap.Int("items", len(items)), zap.Int("works", len(out)))
	return out, nil
}

func classifySearchResult(item payload.Node) []payload.Node {
	if d, ok := item.Lookup("aweme_info"); ok {
		return []payload.Node{d}
	}
	for _, path := range []string{
		"aweme_mix_info.mix_items",
		"card_info.attached_info.aweme_list",
		"user_list[0].items",
	} {
		if d := item.Items(path); d != nil {
			return d
		}
	}
	return nil
}

// SearchUsers extracts accounts from user search results.
func (e *Extractor) SearchUsers(ctx context.Context, items []payload.Node, rec Recorder) ([]record.SearchUser, error) {
	b, err := e.newBatch(ctx, rec)
	if err != nil {
		return nil, err
	}
	out := make([]record.SearchUser, 0, len(items))
	for _, item := range items {
		u := e.searchUser(item.Get("user_info", payload.Node{}), true)
		u.CollectionTime = b.collected
		if err := b.save(u); err != nil {
			return out, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Comments extracts comments and returns, alongside them, the ids of every
// comment that owns a reply thread.
func (e *Extractor) Comments(ctx context.Context, items []payload.Node, rec Recorder) ([]record.Comment, []string, error) {
	b, err := e.newBatch(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	out := make([]record.Comment, 0, len(items))
	var refs []string
	for _, item := range items {
		c := e.comment(b, item)
		if err := b.save(c); err != nil {
			return out, refs, err
		}
		out = append(out, c)
		if c.HasReplies() {
			refs = append(refs, c.CID)
		}
	}
	return out, refs, nil
}

// ReplyRefs returns the ids of comments owning reply threads without
// assembling or saving records.
func ReplyRefs(items []payload.Node) []string {
	var refs []string
	for _, item := range items {
		if replyTotal(item) != "0" {
			refs = append(refs, item.String("cid", ""))
		}
	}
	return refs
}

func replyTotal(item payload.Node) string {
	return strconv.FormatInt(item.Int("reply_comment_total", 0), 10)
}

func counter(node payload.Node, path string) string {
	return strconv.FormatInt(node.Int(path, 0), 10)
}

func (e *Extractor) work(b *batch, data payload.Node) (record.Work, error) {
	w := record.Work{CollectionTime: b.collected}
	w.ID = data.String("aweme_id", "")
	w.Desc = e.cleaner.Description(data.String("desc", ""))
	if w.Desc == "" {
		w.Desc = w.ID
	}
	w.CreateStamp = data.Int("create_time", 0)
	w.CreateTime = e.formatDate(w.CreateStamp)
	w.TextExtra = hashtags(data)
	classify(&w, data)

	w.Account = e.account(b, data, "author")

	if music, ok := data.Lookup("music"); ok {
		w.MusicAuthor = music.String("author", "")
		w.MusicTitle = music.String("title", "")
		w.MusicURL = music.String("play_url.url_list[-1]", "")
	}

	stats := data.Get("statistics", payload.Node{})
	w.DiggCount = counter(stats, "digg_count")
	w.CommentCount = counter(stats, "comment_count")
	w.CollectCount = counter(stats, "collect_count")
	w.ShareCount = counter(stats, "share_count")

	for i, tag := range data.Items("video_tag") {
		if i >= len(w.Tags) {
			break
		}
		w.Tags[i] = tag.String("tag_name", "")
	}

	extra, err := anchorInfo(data)
	if err != nil {
		e.logger.Warn("anchor info not serializable", zap.String("id", w.ID), zap.Error(err))
	}
	w.Extra = extra

	if err := b.save(w); err != nil {
		return w, err
	}
	return w, nil
}

func hashtags(data payload.Node) string {
	var names []string
	for _, item := range data.Items("text_extra") {
		if name := item.String("hashtag_name", ""); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

// classify sets exactly one of the gallery or video shapes.
func classify(w *record.Work, data payload.Node) {
	if images := data.Items("images"); images != nil {
		w.Type = TypeGallery
		w.Downloads = joinLastURLs(images, "url_list[-1]")
		w.Duration = zeroDuration
		return
	}
	if images := data.Items("image_post_info.images"); images != nil {
		w.Type = TypeGallery
		w.Downloads = joinLastURLs(images, "display_image.url_list[-1]")
		w.Duration = zeroDuration
		return
	}
	w.Type = TypeVideo
	w.Downloads = data.String("video.play_addr.url_list[-1]", "")
	w.Duration = FormatDuration(data.Int("video.duration", 0))
	w.DynamicCover = data.String("video.dynamic_cover.url_list[-1]", "")
	w.OriginCover = data.String("video.origin_cover.url_list[-1]", "")
}

func joinLastURLs(items []payload.Node, path string) string {
	urls := make([]string, len(items))
	for i, item := range items {
		urls[i] = item.String(path, "")
	}
	return strings.Join(urls, " ")
}

func anchorInfo(data payload.Node) (string, error) {
	anchor, ok := data.Lookup("anchor_info")
	if !ok {
		return "", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(anchor.Raw()); err != nil {
		return "", fmt.Errorf("encode anchor info: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// account resolves the identity block stored under key ("author" for works,
// "user" for comments).
func (e *Extractor) account(b *batch, data payload.Node, key string) record.Account {
	node := data.Get(key, payload.Node{})
	a := record.Account{
		UID:       node.String("uid", ""),
		SecUID:    node.String("sec_uid", ""),
		ShortID:   node.String("short_id", ""),
		UniqueID:  node.String("unique_id", ""),
		Signature: node.String("signature", ""),
		UserAge:   node.Int("user_age", 0),
	}
	if prev := b.last; prev != nil && a.SecUID != "" && prev.SecUID == a.SecUID {
		a.Nickname = prev.Nickname
		a.Mark = prev.Mark
		if a.Mark == "" {
			a.Mark = a.Nickname
		}
	} else {
		name := e.cleaner.FilterName(node.String("nickname", defaultNickname), invalidNickname)
		a.Nickname = name
		a.Mark = name
	}
	resolved := a
	b.last = &resolved
	return a
}

func (e *Extractor) comment(b *batch, data payload.Node) record.Comment {
	c := record.Comment{
		CollectionTime:    b.collected,
		CreateTime:        e.formatDate(data.Int("create_time", 0)),
		IPLabel:           data.String("ip_label", unknownIPLabel),
		Text:              data.String("text", ""),
		Image:             data.String("image_list[0].origin_url.url_list[-1]", ""),
		Sticker:           data.String("sticker.static_url.url_list[-1]", ""),
		DiggCount:         counter(data, "digg_count"),
		ReplyToReplyID:    data.String("reply_to_reply_id", ""),
		ReplyCommentTotal: replyTotal(data),
		ReplyID:           data.String("reply_id", ""),
		CID:               data.String("cid", ""),
	}
	c.Account = e.account(b, data, "user")
	return c
}

// searchUser reads an account block. thumb selects the small avatar used on
// user search pages; other contexts use the large one.
func (e *Extractor) searchUser(data payload.Node, thumb bool) record.SearchUser {
	avatar := "avatar_larger.url_list[0]"
	if thumb {
		avatar = "avatar_thumb.url_list[0]"
	}
	return record.SearchUser{
		Avatar:         data.String(avatar, ""),
		Nickname:       data.String("nickname", ""),
		SecUID:         data.String("sec_uid", ""),
		Signature:      data.String("signature", ""),
		UID:            data.String("uid", ""),
		ShortID:        data.String("short_id", ""),
		Verify:         data.String("custom_verify", noneLabel),
		Enterprise:     data.String("enterprise_verify_reason", noneLabel),
		FollowerCount:  counter(data, "follower_count"),
		TotalFavorited: counter(data, "total_favorited"),
		UniqueID:       data.String("unique_id", ""),
	}
}
