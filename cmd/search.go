package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/douyin-harvester/internal/crawl"
	"github.com/JakeFAU/douyin-harvester/internal/harvest"
)

var searchTypeNames = map[string]crawl.SearchType{
	"general": crawl.SearchGeneral,
	"video":   crawl.SearchVideo,
	"user":    crawl.SearchUser,
}

var sortNames = map[string]int{
	"comprehensive": harvest.SortComprehensive,
	"latest":        harvest.SortLatest,
	"likes":         harvest.SortMostLiked,
}

type searchOptions struct {
	searchType string
	pages      int
	sort       string
	publish    int
	renameFrom string
}

// newSearchCmd creates the 'search' subcommand.
func newSearchCmd() *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search KEYWORD",
		Short: "Collects search results for a keyword",
		Long: `Pages through the general, video, or user search tab for KEYWORD and
saves every result into one dataset named after the run start time, the
search type, the keyword, and the chosen filters.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(args[0])
			if err != nil {
				return err
			}
			services, err := resolveServices(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := services.Runner().Search(cmd.Context(), req)
			printSummary(cmd.OutOrStdout(), summary)
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.searchType, "type", "t", "general", "search tab: general, video, user (or 0, 1, 2)")
	cmd.Flags().IntVarP(&opts.pages, "pages", "p", 1, "number of result pages to request")
	cmd.Flags().StringVarP(&opts.sort, "sort", "s", "comprehensive", "sort order: comprehensive, latest, likes (or 0, 1, 2)")
	cmd.Flags().IntVar(&opts.publish, "publish", 0, "publish window in days: 0, 1, 7, 182")
	cmd.Flags().StringVar(&opts.renameFrom, "rename-from", "", "option suffix of an earlier dataset for this keyword to rename, e.g. 综合排序_不限")
	return cmd
}

func (o *searchOptions) request(keyword string) (harvest.SearchRequest, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return harvest.SearchRequest{}, fmt.Errorf("keyword must not be empty")
	}
	searchType, err := parseSearchType(o.searchType)
	if err != nil {
		return harvest.SearchRequest{}, err
	}
	sortType, err := parseSort(o.sort)
	if err != nil {
		return harvest.SearchRequest{}, err
	}
	return harvest.SearchRequest{
		Keyword:     keyword,
		Type:        searchType,
		Pages:       o.pages,
		SortType:    sortType,
		PublishTime: o.publish,
		RenameFrom:  o.renameFrom,
	}, nil
}

func parseSearchType(value string) (crawl.SearchType, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if t, ok := searchTypeNames[value]; ok {
		return t, nil
	}
	if n, err := strconv.Atoi(value); err == nil && crawl.SearchType(n).Valid() {
		return crawl.SearchType(n), nil
	}
	return 0, fmt.Errorf("unknown search type %q", value)
}

func parseSort(value string) (int, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if s, ok := sortNames[value]; ok {
		return s, nil
	}
	if n, err := strconv.Atoi(value); err == nil && n >= harvest.SortComprehensive && n <= harvest.SortMostLiked {
		return n, nil
	}
	return 0, fmt.Errorf("unknown sort order %q", value)
}
