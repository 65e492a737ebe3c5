// Package schema is the static registry of record kinds: column order,
// localized titles, storage types and primary-key flags.
package schema

import "strings"

// Field describes one column of a record kind.
type Field struct {
	Key     string
	Title   string
	Type    string
	Primary bool
}

// Definition returns the column definition used by relational backends.
func (f Field) Definition() string {
	if f.Primary {
		return f.Type + " PRIMARY KEY"
	}
	return f.Type
}

// Kind is a record kind bound to a fixed, ordered field set.
type Kind struct {
	Name   string
	DBFile string
	Fields []Field
}

// Keys returns the field keys in column order.
func (k Kind) Keys() []string {
	out := make([]string, len(k.Fields))
	for i, f := range k.Fields {
		out[i] = f.Key
	}
	return out
}

// Titles returns the localized column titles in column order.
func (k Kind) Titles() []string {
	out := make([]string, len(k.Fields))
	for i, f := range k.Fields {
		out[i] = f.Title
	}
	return out
}

// TitleRow returns the titles as a row of cell values.
func (k Kind) TitleRow() []any {
	out := make([]any, len(k.Fields))
	for i, f := range k.Fields {
		out[i] = f.Title
	}
	return out
}

// PrimaryKey returns the primary field, if the kind has one.
func (k Kind) PrimaryKey() (Field, bool) {
	for _, f := range k.Fields {
		if f.Primary {
			return f, true
		}
	}
	return Field{}, false
}

// Lookup resolves a kind by name.
func Lookup(name string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Works.Name:
		return Works, true
	case Comments.Name:
		return Comments, true
	case SearchUsers.Name:
		return SearchUsers, true
	default:
		return Kind{}, false
	}
}

func text(key, title string) Field    { return Field{Key: key, Title: title, Type: "TEXT"} }
func integer(key, title string) Field { return Field{Key: key, Title: title, Type: "INTEGER"} }

// Works is the media item kind.
var Works = Kind{
	Name:   "works",
	DBFile: "WorksData.db",
	Fields: []Field{
		text("type", "作品类型"),
		text("collection_time", "采集时间"),
		text("uid", "UID"),
		text("sec_uid", "SEC_UID"),
		text("unique_id", "抖音号"),
		text("short_id", "SHORT_ID"),
		{Key: "id", Title: "作品ID", Type: "TEXT", Primary: true},
		text("desc", "作品描述"),
		text("text_extra", "作品话题"),
		text("duration", "视频时长"),
		text("create_time", "发布时间"),
		text("nickname", "账号昵称"),
		integer("user_age", "年龄"),
		text("signature", "账号签名"),
		text("downloads", "作品地址"),
		text("music_author", "音乐作者"),
		text("music_title", "音乐标题"),
		text("music_url", "音乐链接"),
		text("origin_cover", "静态封面"),
		text("dynamic_cover", "动态封面"),
		text("tag_1", "标签_1"),
		text("tag_2", "标签_2"),
		text("tag_3", "标签_3"),
		integer("digg_count", "点赞数量"),
		integer("comment_count", "评论数量"),
		integer("collect_count", "收藏数量"),
		integer("share_count", "分享数量"),
		text("extra", "额外信息"),
	},
}

// Comments covers top-level comments and their replies.
var Comments = Kind{
	Name:   "comment",
	DBFile: "CommentData.db",
	Fields: []Field{
		text("collection_time", "采集时间"),
		{Key: "cid", Title: "评论ID", Type: "TEXT", Primary: true},
		text("create_time", "评论时间"),
		text("uid", "UID"),
		text("sec_uid", "SEC_UID"),
		text("short_id", "SHORT_ID"),
		text("unique_id", "抖音号"),
		text("nickname", "账号昵称"),
		text("signature", "账号签名"),
		integer("user_age", "年龄"),
		text("ip_label", "IP归属地"),
		text("text", "评论内容"),
		text("sticker", "评论表情"),
		text("image", "评论图片"),
		integer("digg_count", "点赞数量"),
		integer("reply_comment_total", "回复数量"),
		text("reply_id", "回复ID"),
		text("reply_to_reply_id", "回复对象"),
	},
}

// SearchUsers is the account kind produced by user search.
var SearchUsers = Kind{
	Name:   "search_user",
	DBFile: "SearchData.db",
	Fields: []Field{
		text("collection_time", "采集时间"),
		text("uid", "UID"),
		text("sec_uid", "SEC_UID"),
		text("nickname", "账号昵称"),
		text("unique_id", "抖音号"),
		text("short_id", "SHORT_ID"),
		text("avatar", "头像链接"),
		text("signature", "账号签名"),
		text("verify", "标签"),
		text("enterprise", "企业"),
		integer("follower_count", "粉丝数量"),
		integer("total_favorited", "获赞数量"),
	},
}
