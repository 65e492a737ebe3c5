package cmd

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/douyin-harvester/internal/harvest"
)

var bareWorkID = regexp.MustCompile(`^[0-9]{19}$`)

// newCommentCmd creates the 'comment' subcommand.
func newCommentCmd() *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "comment LINK_OR_ID...",
		Short: "Collects the comments of one or more works",
		Long: `Accepts work share links (https://www.douyin.com/video/... or /note/...)
or bare 19 digit work ids, and saves the comments of each work into its own
dataset. A failing work is reported and the remaining works still run.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseWorkRefs(args)
			if err != nil {
				return err
			}
			services, err := resolveServices(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := services.Runner().Comments(cmd.Context(), harvest.CommentRequest{WorkIDs: ids, Pages: pages})
			printSummary(cmd.OutOrStdout(), summary)
			return err
		},
	}
	cmd.Flags().IntVarP(&pages, "pages", "p", 0, "comment pages per work (0 uses max_pages)")
	return cmd
}

// parseWorkRefs collects work ids from links and bare ids, dropping repeats.
func parseWorkRefs(args []string) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if bareWorkID.MatchString(arg) {
			add(arg)
			continue
		}
		found := harvest.WorkIDs(arg)
		if len(found) == 0 {
			return nil, fmt.Errorf("no work link or id in %q", arg)
		}
		for _, id := range found {
			add(id)
		}
	}
	return ids, nil
}
