package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/acquire"
	"github.com/JakeFAU/douyin-harvester/internal/console"
	"github.com/JakeFAU/douyin-harvester/internal/extract"
	"github.com/JakeFAU/douyin-harvester/internal/metrics"
	"github.com/JakeFAU/douyin-harvester/internal/payload"
	"github.com/JakeFAU/douyin-harvester/internal/record"
	"github.com/JakeFAU/douyin-harvester/internal/signer"
)

// Comment endpoints.
const (
	CommentEndpoint = "https://www.douyin.com/aweme/v1/web/comment/list/"
	ReplyEndpoint   = "https://www.douyin.com/aweme/v1/web/comment/list/reply/"
)

// ErrNestedReplies is returned when a reply page itself references reply
// threads. Replies are expected to be leaves.
var ErrNestedReplies = errors.New("reply pass produced further reply threads")

// CommentExtractor turns raw comment items into records and reply thread ids.
type CommentExtractor interface {
	Comments(ctx context.Context, items []payload.Node, rec extract.Recorder) ([]record.Comment, []string, error)
}

// CommentOptions configures a comment crawl.
type CommentOptions struct {
	WorkID string
	Pages  int
	// Source skips record assembly and persistence. Reply thread ids are
	// still discovered so the raw output covers replies too.
	Source bool
}

// CommentResult holds the output of a comment crawl. Records lists top-level
// comments first, then replies. Raw is only filled in source mode.
type CommentResult struct {
	Records []record.Comment
	Raw     []payload.Node
}

// Comment crawls a work's comments and then every reply thread they own.
// Both passes draw from one page budget.
type Comment struct {
	sender    Sender
	extractor CommentExtractor
	opts      CommentOptions
	state     State
	reporter  console.Reporter
	logger    *zap.Logger
}

// NewComment builds a Comment crawl.
func NewComment(
	sender Sender,
	extractor CommentExtractor,
	opts CommentOptions,
	reporter console.Reporter,
	logger *zap.Logger,
) (*Comment, error) {
	if opts.WorkID == "" {
		return nil, errors.New("work id is required")
	}
	if extractor == nil && !opts.Source {
		return nil, errors.New("comment extractor is required")
	}
	if reporter == nil {
		reporter = console.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Comment{
		sender:    sender,
		extractor: extractor,
		opts:      opts,
		state:     State{Remaining: opts.Pages},
		reporter:  reporter,
		logger:    logger,
	}, nil
}

// State returns the current pagination state.
func (c *Comment) State() State {
	return c.state
}

// Run performs both passes, saving records to rec as they are assembled.
func (c *Comment) Run(ctx context.Context, rec extract.Recorder) (CommentResult, error) {
	var result CommentResult
	for page := 1; c.state.Active(); page++ {
		c.reporter.Info("fetching comment page %d", page)
		err := c.fetch(ctx, "")
		c.state.Remaining--
		if err != nil {
			return result, err
		}
	}

	top, refs, err := c.extract(ctx, c.state.Buffer, rec)
	result.Records = top
	if c.opts.Source {
		result.Raw = append(result.Raw, c.state.Buffer...)
	}
	if err != nil {
		return result, err
	}
	c.state.Buffer = nil

	for _, ref := range refs {
		c.state.restart()
		for c.state.Active() {
			c.reporter.Info("fetching replies of comment %s", ref)
			err := c.fetch(ctx, ref)
			c.state.Remaining--
			if err != nil {
				return result, err
			}
		}
	}

	replies, nested, err := c.extract(ctx, c.state.Buffer, rec)
	result.Records = append(result.Records, replies...)
	if c.opts.Source {
		result.Raw = append(result.Raw, c.state.Buffer...)
	}
	if err != nil {
		return result, err
	}
	if len(nested) > 0 {
		return result, fmt.Errorf("%w: %d threads", ErrNestedReplies, len(nested))
	}
	c.logger.Info("comments finished",
		zap.String("work_id", c.opts.WorkID),
		zap.Int("threads", len(refs)),
		zap.Int("records", len(result.Records)),
		zap.Int("raw", len(result.Raw)))
	return result, nil
}

func (c *Comment) extract(
	ctx context.Context,
	items []payload.Node,
	rec extract.Recorder,
) ([]record.Comment, []string, error) {
	if len(items) == 0 {
		return nil, nil, nil
	}
	if c.opts.Source {
		return nil, extract.ReplyRefs(items), nil
	}
	records, refs, err := c.extractor.Comments(ctx, items, rec)
	if err != nil {
		return records, refs, fmt.Errorf("extract comments: %w", err)
	}
	return records, refs, nil
}

// fetch requests one page. An empty reply selects the top-level endpoint.
func (c *Comment) fetch(ctx context.Context, reply string) error {
	req := acquire.Request{URL: CommentEndpoint, SignVersion: signer.VersionFirstPage}
	cursor := strconv.FormatInt(c.state.Cursor, 10)
	if reply == "" {
		req.Params = url.Values{
			"aweme_id": {c.opts.WorkID},
			"cursor":   {cursor},
			"count":    {"20"},
			"downlink": {"10"},
		}
	} else {
		count := "3"
		if c.state.Cursor != 0 {
			count = "10"
		}
		req.URL = ReplyEndpoint
		req.SignVersion = signer.VersionPaged
		req.Params = url.Values{
			"item_id":    {c.opts.WorkID},
			"comment_id": {reply},
			"cursor":     {cursor},
			"count":      {count},
			"downlink":   {"10"},
		}
	}

	page, err := c.sender.Send(ctx, req)
	if errors.Is(err, acquire.ErrRetriesExhausted) {
		c.logger.Warn("comment page abandoned", zap.String("comment_id", reply), zap.Error(err))
		c.state.Finish()
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch comment page: %w", err)
	}
	c.accept(page)
	return nil
}

// accept appends a page. Pagination ends on a missing or empty comment
// list, a missing cursor, or has_more being false.
func (c *Comment) accept(page payload.Node) {
	items, ok := page.Lookup("comments")
	if !ok {
		c.state.Finish()
		return
	}
	c.state.Buffer = append(c.state.Buffer, items.Elems()...)
	metrics.ObservePage("comment")
	cursor, ok := cursorOf(page)
	if !ok {
		c.state.Finish()
		return
	}
	c.state.Cursor = cursor
	more, ok := page.Field("has_more")
	if !ok || !more.Truthy() {
		c.state.Finish()
	}
}
