// Logbook commands for the elog CLI.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/elog/pkg/types"
)

var (
	logbookCreateName        string
	logbookCreateDescription string
	logbookCreateTemplate    string
	logbookCreateParent      string
	logbookCreateAttributes  string

	logbookChangeAuthors string
	logbookChangeComment string
)

var logbookCmd = &cobra.Command{
	Use:   "logbook",
	Short: "Manage logbooks",
}

var logbookCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new logbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var attributes []types.Attribute
		if logbookCreateAttributes != "" {
			if err := json.Unmarshal([]byte(logbookCreateAttributes), &attributes); err != nil {
				fmt.Fprintf(os.Stderr, "logbook create: invalid --attributes: %s\n", err)
				os.Exit(exitUserError)
			}
		}

		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "logbook create:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		logbook := &types.Logbook{
			Name:        logbookCreateName,
			Description: logbookCreateDescription,
			Template:    logbookCreateTemplate,
			ParentID:    logbookCreateParent,
			Attributes:  attributes,
		}
		id, err := backend.CreateLogbook(logbook)
		if err != nil {
			fmt.Fprintln(os.Stderr, "logbook create:", err)
			os.Exit(exitUserError)
		}

		if flagJSON {
			return printJSON(logbook)
		}
		fmt.Println("Created logbook:", id)
		return nil
	},
}

var logbookGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a logbook by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "logbook get:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		logbook, err := backend.GetLogbook(args[0])
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				fmt.Fprintf(os.Stderr, "logbook %q not found\n", args[0])
				os.Exit(exitUserError)
			}
			fmt.Fprintln(os.Stderr, "logbook get:", err)
			os.Exit(exitSysError)
		}

		return printJSON(logbook)
	},
}

var logbookListCmd = &cobra.Command{
	Use:   "list [parent-id]",
	Short: "List root logbooks, or the children of one logbook",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "logbook list:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		parentID := ""
		if len(args) == 1 {
			parentID = args[0]
		}
		logbooks, err := backend.ListLogbooks(parentID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "logbook list:", err)
			os.Exit(exitUserError)
		}

		if flagJSON {
			return printJSON(logbooks)
		}
		for _, logbook := range logbooks {
			fmt.Printf("%s  %s\n", logbook.LogbookID, logbook.Name)
		}
		return nil
	},
}

var logbookChangeCmd = &cobra.Command{
	Use:   "change <id> <field=value>...",
	Short: "Change logbook fields, recording a revision",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseFieldValues(args[1:])
		if err != nil {
			fmt.Fprintln(os.Stderr, "logbook change:", err)
			os.Exit(exitUserError)
		}

		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "logbook change:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		meta := types.RevisionMeta{
			Authors: parseAuthors(logbookChangeAuthors),
			Comment: logbookChangeComment,
		}
		revision, err := backend.ChangeLogbook(args[0], values, meta)
		if err != nil {
			fmt.Fprintln(os.Stderr, "logbook change:", err)
			os.Exit(exitUserError)
		}

		if flagJSON {
			return printJSON(revision)
		}
		fmt.Printf("Changed logbook %s (revision %d)\n", args[0], revision.RevisionID)
		return nil
	},
}

var logbookAncestorsCmd = &cobra.Command{
	Use:   "ancestors <id>",
	Short: "Show the logbook's parent chain, root first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "logbook ancestors:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		ancestors, err := backend.LogbookAncestors(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "logbook ancestors:", err)
			os.Exit(exitUserError)
		}

		if flagJSON {
			return printJSON(ancestors)
		}
		for _, logbook := range ancestors {
			fmt.Printf("%s  %s\n", logbook.LogbookID, logbook.Name)
		}
		return nil
	},
}

var logbookHistoryCmd = &cobra.Command{
	Use:   "history <id> [version]",
	Short: "Show a logbook's revisions, or one past version",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "logbook history:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		if len(args) == 2 {
			version, err := strconv.Atoi(args[1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "logbook history: invalid version %q\n", args[1])
				os.Exit(exitUserError)
			}
			logbook, err := backend.GetLogbookVersion(args[0], version)
			if err != nil {
				fmt.Fprintln(os.Stderr, "logbook history:", err)
				os.Exit(exitUserError)
			}
			return printJSON(logbook)
		}

		revisions, err := backend.LogbookRevisions(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "logbook history:", err)
			os.Exit(exitUserError)
		}
		return printJSON(revisions)
	},
}

var logbookHistogramCmd = &cobra.Command{
	Use:   "histogram <id>",
	Short: "Show per-day entry creation counts for a logbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "logbook histogram:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		bins, err := backend.EntryHistogram(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "logbook histogram:", err)
			os.Exit(exitUserError)
		}

		if flagJSON {
			return printJSON(bins)
		}
		for _, bin := range bins {
			fmt.Printf("%s  %4d  %s\n", bin.Date, bin.Count, bin.FirstEntryID)
		}
		return nil
	},
}

func init() {
	logbookCreateCmd.Flags().StringVar(&logbookCreateName, "name", "", "logbook name (required)")
	logbookCreateCmd.Flags().StringVar(&logbookCreateDescription, "description", "", "logbook description")
	logbookCreateCmd.Flags().StringVar(&logbookCreateTemplate, "template", "", "entry template")
	logbookCreateCmd.Flags().StringVar(&logbookCreateParent, "parent", "", "parent logbook ID")
	logbookCreateCmd.Flags().StringVar(&logbookCreateAttributes, "attributes", "", "attribute definitions as JSON")
	logbookCreateCmd.MarkFlagRequired("name")

	logbookChangeCmd.Flags().StringVar(&logbookChangeAuthors, "authors", "", "comma-separated author names")
	logbookChangeCmd.Flags().StringVar(&logbookChangeComment, "comment", "", "revision comment")

	logbookCmd.AddCommand(logbookCreateCmd)
	logbookCmd.AddCommand(logbookGetCmd)
	logbookCmd.AddCommand(logbookListCmd)
	logbookCmd.AddCommand(logbookChangeCmd)
	logbookCmd.AddCommand(logbookAncestorsCmd)
	logbookCmd.AddCommand(logbookHistoryCmd)
	logbookCmd.AddCommand(logbookHistogramCmd)
}
