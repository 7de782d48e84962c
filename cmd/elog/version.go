// Version command for the elog CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/elog/pkg/elog"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the elog version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("elog", elog.Version)
	},
}
