// Search command for the elog CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/elog/pkg/types"
)

var (
	searchLogbook     string
	searchDescendants bool
	searchArchived    bool
	searchLimit       int
	searchOffset      int
	searchTitle       string
	searchContent     string
	searchAuthor      string
	searchCount       bool
)

var searchCmd = &cobra.Command{
	Use:   "search [attribute=value]...",
	Short: "Search entries",
	Long: `Search finds entries ordered by most recent activity. Title, content and
author filters are regular expressions. Positional arguments filter on
entry attribute values, which must match exactly.

Without text filters, results are reply threads: each row is a thread root
with its followup count. With a text filter, matching followups are listed
individually.

Example:
  elog search --logbook 0198... --content "beam dump"
  elog search --logbook 0198... --descendants operator=smith`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := types.SearchOptions{
			LogbookID:          searchLogbook,
			IncludeDescendants: searchDescendants,
			IncludeArchived:    searchArchived,
			Limit:              searchLimit,
			Offset:             searchOffset,
			TitlePattern:       searchTitle,
			ContentPattern:     searchContent,
			AuthorPattern:      searchAuthor,
		}
		for _, arg := range args {
			parts := strings.SplitN(arg, "=", 2)
			if len(parts) != 2 {
				fmt.Fprintf(os.Stderr, "search: invalid attribute filter %q (expected name=value)\n", arg)
				os.Exit(exitUserError)
			}
			var value any
			if err := json.Unmarshal([]byte(parts[1]), &value); err != nil {
				value = parts[1]
			}
			opts.AttributeFilters = append(opts.AttributeFilters, types.AttributeFilter{
				Name:  parts[0],
				Value: value,
			})
		}

		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "search:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		if searchCount {
			n, err := backend.CountEntries(opts)
			if err != nil {
				fmt.Fprintln(os.Stderr, "search:", err)
				os.Exit(exitUserError)
			}
			fmt.Println(n)
			return nil
		}

		results, err := backend.Search(opts)
		if err != nil {
			fmt.Fprintln(os.Stderr, "search:", err)
			os.Exit(exitUserError)
		}

		if flagJSON {
			return printJSON(results)
		}
		for _, result := range results {
			title := result.Entry.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%s  %s  %s", result.Entry.EntryID,
				result.LastActivity.Format("2006-01-02 15:04"), title)
			if result.FollowupCount > 0 {
				fmt.Printf("  (+%d)", result.FollowupCount)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchLogbook, "logbook", "", "restrict to one logbook")
	searchCmd.Flags().BoolVar(&searchDescendants, "descendants", false, "also search nested logbooks")
	searchCmd.Flags().BoolVar(&searchArchived, "archived", false, "include archived entries")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (0 = no limit)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "results to skip")
	searchCmd.Flags().StringVar(&searchTitle, "title", "", "title regular expression")
	searchCmd.Flags().StringVar(&searchContent, "content", "", "content regular expression")
	searchCmd.Flags().StringVar(&searchAuthor, "author", "", "author name regular expression")
	searchCmd.Flags().BoolVar(&searchCount, "count", false, "print only the match count")
}
