// Lock commands for the elog CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/elog/pkg/types"
)

var lockRequester string

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Manage advisory entry locks",
}

var lockShowCmd = &cobra.Command{
	Use:   "show <entry-id>",
	Short: "Show the entry's active lock, if any",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "lock show:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		lock, err := backend.GetLock(args[0], "", false, false)
		if err != nil {
			fmt.Fprintln(os.Stderr, "lock show:", err)
			os.Exit(exitUserError)
		}
		if lock == nil {
			fmt.Println("no active lock")
			return nil
		}
		return printJSON(lock)
	},
}

var lockAcquireCmd = &cobra.Command{
	Use:   "acquire <entry-id>",
	Short: "Acquire an edit lock on an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "lock acquire:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		lock, err := backend.GetLock(args[0], lockRequester, true, false)
		if err != nil {
			var locked *types.LockedError
			if errors.As(err, &locked) {
				fmt.Fprintln(os.Stderr, "lock acquire:", locked)
				os.Exit(exitUserError)
			}
			fmt.Fprintln(os.Stderr, "lock acquire:", err)
			os.Exit(exitUserError)
		}
		return printJSON(lock)
	},
}

var lockStealCmd = &cobra.Command{
	Use:   "steal <entry-id>",
	Short: "Take over another requester's lock on an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "lock steal:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		lock, err := backend.GetLock(args[0], lockRequester, false, true)
		if err != nil {
			fmt.Fprintln(os.Stderr, "lock steal:", err)
			os.Exit(exitUserError)
		}
		return printJSON(lock)
	},
}

var lockCancelCmd = &cobra.Command{
	Use:   "cancel <entry-id>",
	Short: "Cancel the entry's active lock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachBackend()
		if err != nil {
			fmt.Fprintln(os.Stderr, "lock cancel:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		lock, err := backend.CancelLock(args[0], lockRequester)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				fmt.Fprintln(os.Stderr, "lock cancel:", err)
				os.Exit(exitUserError)
			}
			fmt.Fprintln(os.Stderr, "lock cancel:", err)
			os.Exit(exitSysError)
		}
		return printJSON(lock)
	},
}

func init() {
	lockCmd.PersistentFlags().StringVar(&lockRequester, "requester", "", "requester identifier, e.g. a user or host name")

	lockCmd.AddCommand(lockShowCmd)
	lockCmd.AddCommand(lockAcquireCmd)
	lockCmd.AddCommand(lockStealCmd)
	lockCmd.AddCommand(lockCancelCmd)
}
