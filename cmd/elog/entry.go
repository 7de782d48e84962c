// Entry commands for the elog CLI.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/elog/pkg/types"
)

var (
	entryCreateLogbook    string
	entryCreateTitle      string
	entryCreateContent    string
	entryCreateAuthors    string
	entryCreateFollows    string
	entryCreateAttributes string

	entryChangeAuthors     string
	entryChangeComment     string
	entryChangeOrigin      string
	entryChangeLastChanged string
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Manage entries",
}

var entryCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var attributes map[string]any
		if entryCreateAttributes != "" {
			if err := json.Unmarshal([]byte(entryCreateAttributes), &attributes); err != nil {
				fmt.Fprintf(os.Stderr, "entry create: invalid --attributes: %s\n", err)
				os.Exit(exitUserError)
			}
		}

		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "entry create:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		entry := &types.Entry{
			LogbookID:  entryCreateLogbook,
			Title:      entryCreateTitle,
			Content:    entryCreateContent,
			Authors:    parseAuthors(entryCreateAuthors),
			FollowsID:  entryCreateFollows,
			Attributes: attributes,
		}
		id, err := backend.CreateEntry(entry)
		if err != nil {
			fmt.Fprintln(os.Stderr, "entry create:", err)
			os.Exit(exitUserError)
		}

		if flagJSON {
			return printJSON(entry)
		}
		fmt.Println("Created entry:", id)
		return nil
	},
}

var entryGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get an entry by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "entry get:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		entry, err := backend.GetEntry(args[0])
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				fmt.Fprintf(os.Stderr, "entry %q not found\n", args[0])
				os.Exit(exitUserError)
			}
			fmt.Fprintln(os.Stderr, "entry get:", err)
			os.Exit(exitSysError)
		}

		return printJSON(entry)
	},
}

var entryChangeCmd = &cobra.Command{
	Use:   "change <id> <field=value>...",
	Short: "Change entry fields, recording a revision",
	Long: `Change applies field values to an entry, recording the old values as a
revision. With --last-changed the edit is rejected if the entry was changed
after that timestamp, which catches concurrent edits.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseFieldValues(args[1:])
		if err != nil {
			fmt.Fprintln(os.Stderr, "entry change:", err)
			os.Exit(exitUserError)
		}

		meta := types.RevisionMeta{
			Authors: parseAuthors(entryChangeAuthors),
			Comment: entryChangeComment,
			Origin:  entryChangeOrigin,
		}
		if entryChangeLastChanged != "" {
			ts, err := time.Parse(time.RFC3339Nano, entryChangeLastChanged)
			if err != nil {
				fmt.Fprintf(os.Stderr, "entry change: invalid --last-changed: %s\n", err)
				os.Exit(exitUserError)
			}
			meta.CheckLastChanged = true
			meta.LastChangedAt = &ts
		}

		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "entry change:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		revision, err := backend.ChangeEntry(args[0], values, meta)
		if err != nil {
			var conflict *types.ConflictError
			if errors.As(err, &conflict) {
				fmt.Fprintln(os.Stderr, "entry change:", conflict)
				os.Exit(exitUserError)
			}
			fmt.Fprintln(os.Stderr, "entry change:", err)
			os.Exit(exitUserError)
		}

		if flagJSON {
			return printJSON(revision)
		}
		fmt.Printf("Changed entry %s (revision %d)\n", args[0], revision.RevisionID)
		return nil
	},
}

var entryHistoryCmd = &cobra.Command{
	Use:   "history <id> [version]",
	Short: "Show an entry's revisions, or one past version",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "entry history:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		if len(args) == 2 {
			version, err := strconv.Atoi(args[1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "entry history: invalid version %q\n", args[1])
				os.Exit(exitUserError)
			}
			entry, err := backend.GetEntryVersion(args[0], version)
			if err != nil {
				fmt.Fprintln(os.Stderr, "entry history:", err)
				os.Exit(exitUserError)
			}
			return printJSON(entry)
		}

		revisions, err := backend.EntryRevisions(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "entry history:", err)
			os.Exit(exitUserError)
		}
		return printJSON(revisions)
	},
}

var entryThreadCmd = &cobra.Command{
	Use:   "thread <id>",
	Short: "Show the root of the entry's reply thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "entry thread:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		root, err := backend.ThreadRoot(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "entry thread:", err)
			os.Exit(exitUserError)
		}
		return printJSON(root)
	},
}

var entryNextCmd = &cobra.Command{
	Use:   "next <id>",
	Short: "Show the next thread root in the same logbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "entry next:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		entry, err := backend.NextEntry(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "entry next:", err)
			os.Exit(exitUserError)
		}
		return printJSON(entry)
	},
}

var entryPrevCmd = &cobra.Command{
	Use:   "prev <id>",
	Short: "Show the previous thread root in the same logbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "entry prev:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		entry, err := backend.PreviousEntry(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "entry prev:", err)
			os.Exit(exitUserError)
		}
		return printJSON(entry)
	},
}

func init() {
	entryCreateCmd.Flags().StringVar(&entryCreateLogbook, "logbook", "", "owning logbook ID (required)")
	entryCreateCmd.Flags().StringVar(&entryCreateTitle, "title", "", "entry title")
	entryCreateCmd.Flags().StringVar(&entryCreateContent, "content", "", "entry content")
	entryCreateCmd.Flags().StringVar(&entryCreateAuthors, "authors", "", "comma-separated author names")
	entryCreateCmd.Flags().StringVar(&entryCreateFollows, "follows", "", "entry ID this entry follows up on")
	entryCreateCmd.Flags().StringVar(&entryCreateAttributes, "attributes", "", "attribute values as JSON")
	entryCreateCmd.MarkFlagRequired("logbook")

	entryChangeCmd.Flags().StringVar(&entryChangeAuthors, "authors", "", "comma-separated author names")
	entryChangeCmd.Flags().StringVar(&entryChangeComment, "comment", "", "revision comment")
	entryChangeCmd.Flags().StringVar(&entryChangeOrigin, "origin", "", "requester identifier; releases a held lock on success")
	entryChangeCmd.Flags().StringVar(&entryChangeLastChanged, "last-changed", "", "last-changed timestamp observed when loading the entry (RFC 3339)")

	entryCmd.AddCommand(entryCreateCmd)
	entryCmd.AddCommand(entryGetCmd)
	entryCmd.AddCommand(entryChangeCmd)
	entryCmd.AddCommand(entryHistoryCmd)
	entryCmd.AddCommand(entryThreadCmd)
	entryCmd.AddCommand(entryNextCmd)
	entryCmd.AddCommand(entryPrevCmd)
}
