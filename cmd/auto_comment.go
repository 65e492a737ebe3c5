package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/douyin-harvester/internal/harvest"
)

// newAutoCommentCmd creates the 'auto-comment' subcommand.
func newAutoCommentCmd() *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "auto-comment KEYWORD",
		Short: "Searches the most liked videos for a keyword and collects their comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := strings.TrimSpace(args[0])
			if keyword == "" {
				return fmt.Errorf("keyword must not be empty")
			}
			services, err := resolveServices(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := services.Runner().AutoComments(cmd.Context(), keyword, pages)
			printSummary(cmd.OutOrStdout(), summary)
			return err
		},
	}
	cmd.Flags().IntVarP(&pages, "pages", "p", harvest.AutoCommentPages, "search pages to scan for works")
	return cmd
}
