// Attachment commands for the elog CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/elog/pkg/types"
)

var (
	attachmentAddEntry       string
	attachmentAddFilename    string
	attachmentAddPath        string
	attachmentAddContentType string
	attachmentAddEmbedded    bool

	attachmentListEmbedded bool
)

var attachmentCmd = &cobra.Command{
	Use:   "attachment",
	Short: "Manage attachment descriptors",
}

var attachmentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record an attachment descriptor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "attachment add:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		attachment := &types.Attachment{
			EntryID:     attachmentAddEntry,
			Filename:    attachmentAddFilename,
			Path:        attachmentAddPath,
			ContentType: attachmentAddContentType,
			Embedded:    attachmentAddEmbedded,
		}
		id, err := backend.AddAttachment(attachment)
		if err != nil {
			fmt.Fprintln(os.Stderr, "attachment add:", err)
			os.Exit(exitUserError)
		}

		if flagJSON {
			return printJSON(attachment)
		}
		fmt.Println("Added attachment:", id)
		return nil
	},
}

var attachmentGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get an attachment descriptor by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "attachment get:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		attachment, err := backend.GetAttachment(args[0])
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				fmt.Fprintf(os.Stderr, "attachment %q not found\n", args[0])
				os.Exit(exitUserError)
			}
			fmt.Fprintln(os.Stderr, "attachment get:", err)
			os.Exit(exitSysError)
		}
		return printJSON(attachment)
	},
}

var attachmentListCmd = &cobra.Command{
	Use:   "list <entry-id>",
	Short: "List an entry's attachment descriptors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "attachment list:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		attachments, err := backend.EntryAttachments(args[0], attachmentListEmbedded)
		if err != nil {
			fmt.Fprintln(os.Stderr, "attachment list:", err)
			os.Exit(exitUserError)
		}

		if flagJSON {
			return printJSON(attachments)
		}
		for _, attachment := range attachments {
			fmt.Printf("%s  %s\n", attachment.AttachmentID, attachment.Path)
		}
		return nil
	},
}

func init() {
	attachmentAddCmd.Flags().StringVar(&attachmentAddEntry, "entry", "", "owning entry ID")
	attachmentAddCmd.Flags().StringVar(&attachmentAddFilename, "filename", "", "original filename")
	attachmentAddCmd.Flags().StringVar(&attachmentAddPath, "path", "", "location within the upload area (required)")
	attachmentAddCmd.Flags().StringVar(&attachmentAddContentType, "content-type", "", "MIME type")
	attachmentAddCmd.Flags().BoolVar(&attachmentAddEmbedded, "embedded", false, "content is embedded in the entry body")
	attachmentAddCmd.MarkFlagRequired("path")

	attachmentListCmd.Flags().BoolVar(&attachmentListEmbedded, "embedded", false, "list embedded attachments instead of regular ones")

	attachmentCmd.AddCommand(attachmentAddCmd)
	attachmentCmd.AddCommand(attachmentGetCmd)
	attachmentCmd.AddCommand(attachmentListCmd)
}
