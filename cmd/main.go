// Package cmd implements the oracle-postprocess command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "oracle-postprocess <input.rbxlx>",
	Short: "A rbxlx postprocessor that decompiles everything inside",
	Long: `oracle-postprocess rewrites Roblox place files saved by script dumpers.
Scripts whose source was replaced with a base64 bytecode marker are sent to
the Oracle decompiler service and come back with their decompiled source
spliced in; everything else in the document is passed through untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringP("key", "k", "", "Oracle key (also read from the ORACLE_KEY env variable; the flag wins)")
	rootCmd.PersistentFlags().String("base-url", "", "Oracle decompiler url")
	rootCmd.PersistentFlags().String("transport", "", "transport used to reach the service (ws or http)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "skip the local result cache")

	rootCmd.Flags().StringP("output", "o", "out.rbxlx", "output file path")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
