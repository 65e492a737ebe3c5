// Package record defines the normalized, flat records produced by extraction.
// Values() always returns the fields in schema registry order.
package record

import "github.com/JakeFAU/douyin-harvester/internal/schema"

// Account carries the identity fields shared by works and comments.
type Account struct {
	UID       string
	SecUID    string
	ShortID   string
	UniqueID  string
	Signature string
	UserAge   int64
	Nickname  string
	Mark      string
}

// Work is one media item.
type Work struct {
	Account
	Type           string
	CollectionTime string
	ID             string
	Desc           string
	TextExtra      string
	Duration       string
	CreateTime     string
	CreateStamp    int64
	Downloads      string
	MusicAuthor    string
	MusicTitle     string
	MusicURL       string
	OriginCover    string
	DynamicCover   string
	Tags           [3]string
	DiggCount      string
	CommentCount   string
	CollectCount   string
	ShareCount     string
	Extra          string
}

// Kind returns the schema the record belongs to.
func (Work) Kind() schema.Kind { return schema.Works }

// Values returns the row in schema.Works order.
func (w Work) Values() []any {
	return []any{
		w.Type,
		w.CollectionTime,
		w.UID,
		w.SecUID,
		w.UniqueID,
		w.ShortID,
		w.ID,
		w.Desc,
		w.TextExtra,
		w.Duration,
		w.CreateTime,
		w.Nickname,
		w.UserAge,
		w.Signature,
		w.Downloads,
		w.MusicAuthor,
		w.MusicTitle,
		w.MusicURL,
		w.OriginCover,
		w.DynamicCover,
		w.Tags[0],
		w.Tags[1],
		w.Tags[2],
		w.DiggCount,
		w.CommentCount,
		w.CollectCount,
		w.ShareCount,
		w.Extra,
	}
}

// Comment is a top-level comment or a reply.
type Comment struct {
	Account
	CollectionTime    string
	CID               string
	CreateTime        string
	IPLabel           string
	Text              string
	Sticker           string
	Image             string
	DiggCount         string
	ReplyCommentTotal string
	ReplyID           string
	ReplyToReplyID    string
}

// Kind returns the schema the record belongs to.
func (Comment) Kind() schema.Kind { return schema.Comments }

// HasReplies reports whether the comment owns a reply thread.
func (c Comment) HasReplies() bool {
	return c.ReplyCommentTotal != "0"
}

// Values returns the row in schema.Comments order.
func (c Comment) Values() []any {
	return []any{
		c.CollectionTime,
		c.CID,
		c.CreateTime,
		c.UID,
		c.SecUID,
		c.ShortID,
		c.UniqueID,
		c.Nickname,
		c.Signature,
		c.UserAge,
		c.IPLabel,
		c.Text,
		c.Sticker,
		c.Image,
		c.DiggCount,
		c.ReplyCommentTotal,
		c.ReplyID,
		c.ReplyToReplyID,
	}
}

// SearchUser is an account returned by user search.
type SearchUser struct {
	CollectionTime string
	UID            string
	SecUID         string
	Nickname       string
	UniqueID       string
	ShortID        string
	Avatar         string
	Signature      string
	Verify         string
	Enterprise     string
	FollowerCount  string
	TotalFavorited string
}

// Kind returns the schema the record belongs to.
func (SearchUser) Kind() schema.Kind { return schema.SearchUsers }

// Values returns the row in schema.SearchUsers order.
func (u SearchUser) Values() []any {
	return []any{
		u.CollectionTime,
		u.UID,
		u.SecUID,
		u.Nickname,
		u.UniqueID,
		u.ShortID,
		u.Avatar,
		u.Signature,
		u.Verify,
		u.Enterprise,
		u.FollowerCount,
		u.TotalFavorited,
	}
}

// Record is implemented by every normalized record kind.
type Record interface {
	Kind() schema.Kind
	Values() []any
}
