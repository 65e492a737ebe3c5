package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/douyin-harvester/internal/acquire"
	"github.com/JakeFAU/douyin-harvester/internal/console"
	"github.com/JakeFAU/douyin-harvester/internal/metrics"
	"github.com/JakeFAU/douyin-harvester/internal/payload"
	"github.com/JakeFAU/douyin-harvester/internal/signer"
)

// SearchType selects the search tab.
type SearchType int

// Search tabs.
const (
	SearchGeneral SearchType = iota
	SearchVideo
	SearchUser
)

type variant struct {
	name     string
	endpoint string
	count    int
	channel  string
	key      string
	filtered bool
}

var variants = map[SearchType]variant{
	SearchGeneral: {
		name:     "general",
		endpoint: "https://www.douyin.com/aweme/v1/web/general/search/single/",
		count:    15,
		channel:  "aweme_general",
		key:      "data",
		filtered: true,
	},
	SearchVideo: {
		name:     "video",
		endpoint: "https://www.douyin.com/aweme/v1/web/search/item/",
		count:    20,
		channel:  "aweme_video_web",
		key:      "data",
		filtered: true,
	},
	SearchUser: {
		name:     "user",
		endpoint: "https://www.douyin.com/aweme/v1/web/discover/search/",
		count:    20,
		channel:  "aweme_user_web",
		key:      "user_list",
	},
}

// Name returns the tab name used by the platform ("general", "video", "user").
func (t SearchType) Name() string {
	return variants[t].name
}

// Valid reports whether t is a known tab.
func (t SearchType) Valid() bool {
	_, ok := variants[t]
	return ok
}

// SearchOptions configures a search crawl.
type SearchOptions struct {
	Keyword string
	Type    SearchType
	Pages   int
	// SortType and PublishTime only apply to general and video searches.
	SortType    int
	PublishTime int
}

// Search collects raw search results page by page.
type Search struct {
	sender   Sender
	opts     SearchOptions
	variant  variant
	state    State
	reporter console.Reporter
	logger   *zap.Logger
}

// NewSearch validates opts and builds a Search.
func NewSearch(sender Sender, opts SearchOptions, reporter console.Reporter, logger *zap.Logger) (*Search, error) {
	v, ok := variants[opts.Type]
	if !ok {
		return nil, fmt.Errorf("unknown search type %d", opts.Type)
	}
	if opts.Keyword == "" {
		return nil, errors.New("search keyword is required")
	}
	if reporter == nil {
		reporter = console.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Search{
		sender:   sender,
		opts:     opts,
		variant:  v,
		state:    State{Remaining: opts.Pages},
		reporter: reporter,
		logger:   logger,
	}, nil
}

// State returns the current pagination state.
func (s *Search) State() State {
	return s.state
}

// Run requests pages until the budget is spent or pagination ends, and
// returns every collected item in arrival order.
func (s *Search) Run(ctx context.Context) ([]payload.Node, error) {
	for page := 1; s.state.Active(); page++ {
		s.reporter.Info("fetching search page %d", page)
		err := s.fetch(ctx)
		s.state.Remaining--
		if err != nil {
			return s.state.Buffer, err
		}
	}
	s.logger.Info("search finished",
		zap.String("keyword", s.opts.Keyword),
		zap.String("type", s.variant.name),
		zap.Int("items", len(s.state.Buffer)))
	return s.state.Buffer, nil
}

func (s *Search) fetch(ctx context.Context) error {
	version := signer.VersionFirstPage
	if s.state.Cursor != 0 {
		version = signer.VersionPaged
	}
	page, err := s.sender.Send(ctx, acquire.Request{
		URL:         s.variant.endpoint,
		Params:      s.params(),
		Headers:     http.Header{"Referer": {s.referer()}},
		SignVersion: version,
	})
	if errors.Is(err, acquire.ErrRetriesExhausted) {
		s.logger.Warn("search page abandoned", zap.Error(err))
		s.state.Finish()
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch search page: %w", err)
	}
	s.accept(page)
	return nil
}

// accept appends the page's results and advances the cursor. A missing
// result key or cursor ends pagination; an empty result list does not.
func (s *Search) accept(page payload.Node) {
	items, ok := page.Field(s.variant.key)
	if !ok {
		s.state.Finish()
		return
	}
	s.state.Buffer = append(s.state.Buffer, items.Elems()...)
	metrics.ObservePage("search")
	cursor, ok := cursorOf(page)
	if !ok {
		s.state.Finish()
		return
	}
	s.state.Cursor = cursor
}

func (s *Search) params() url.Values {
	v := s.variant
	p := url.Values{
		"search_channel":     {v.channel},
		"keyword":            {s.opts.Keyword},
		"search_source":      {"switch_tab"},
		"query_correct_type": {"1"},
		"offset":             {strconv.FormatInt(s.state.Cursor, 10)},
		"count":              {strconv.Itoa(v.count)},
		"pc_client_type":     {"1"},
		"downlink":           {"7.7"},
	}
	if !v.filtered {
		p.Set("is_filter_search", "0")
		return p
	}
	p.Set("sort_type", strconv.Itoa(s.opts.SortType))
	p.Set("publish_time", strconv.Itoa(s.opts.PublishTime))
	filter := "0"
	if s.opts.SortType != 0 || s.opts.PublishTime != 0 {
		filter = "1"
	}
	p.Set("is_filter_search", filter)
	return p
}

func (s *Search) referer() string {
	return fmt.Sprintf("https://www.douyin.com/search/%s?source=switch_tab&type=%s",
		url.PathEscape(s.opts.Keyword), s.variant.name)
}
