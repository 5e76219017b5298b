package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cutzel/oracle-postprocess/pkg/update"
)

var checkUpdateCmd = &cobra.Command{
	Use:   "check-update",
	Short: "Checks GitHub for a newer release",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(cmd); err != nil {
			return err
		}

		rel, err := update.NewChecker().Latest(cmd.Context())
		if err != nil {
			return err
		}

		newer, err := rel.NewerThan(Version)
		if err != nil {
			// development builds have no comparable version
			printSubtask(fmt.Sprintf("Running build %s; the latest release is %s", Version, rel.Tag))
			return nil
		}

		if newer {
			printTask(fmt.Sprintf("Version %s is available (you are on %s)", rel.Tag, Version))
			printSubtask(rel.URL)
		} else {
			printSubtask(fmt.Sprintf("Already up to date (%s)", Version))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkUpdateCmd)
}
