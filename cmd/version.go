package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overridden at build time through -ldflags.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the build version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("oracle-postprocess " + Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
