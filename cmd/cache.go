package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manages the local result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Shows what the result cache holds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		cache, err := openCache(cfg)
		if err != nil {
			return err
		}
		defer cache.Close()

		stats, err := cache.Stats()
		if err != nil {
			return err
		}

		printTask(fmt.Sprintf("Result cache at %s", cache.Path()))
		printSubtask(fmt.Sprintf("%d entries (%d decompiled, %d failed)",
			stats.Entries, stats.Successes, stats.Failures))
		printSubtask(fmt.Sprintf("%.1f KiB on disk", float64(stats.SizeBytes)/1024))

		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drops every cached result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		cache, err := openCache(cfg)
		if err != nil {
			return err
		}
		defer cache.Close()

		if err := cache.Clear(); err != nil {
			return err
		}

		printTask("Cache cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
