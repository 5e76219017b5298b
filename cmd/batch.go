package cmd

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cutzel/oracle-postprocess/pkg/batch"
)

var batchCmd = &cobra.Command{
	Use:   "batch <manifest.yml>",
	Short: "Processes several place files from a YAML manifest",
	Long: `Runs every job listed in the manifest in order, sharing one service
connection and one result cache across all of them. A failed job is reported
and the remaining jobs still run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		manifest, err := batch.LoadManifest(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		printTask("Connecting to the Oracle service")
		client, cleanup, err := buildClient(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		defer shutdownClient(client)

		printTask(fmt.Sprintf("Processing %d jobs", len(manifest.Jobs)))
		results := batch.Run(ctx, client, manifest, func(job batch.Job, done, total int) {
			log.Info().
				Str("job", job.Input).
				Msgf("Decompiled %d/%d scripts", done, total)
		})

		for _, res := range results {
			if res.Err != nil {
				printError(fmt.Sprintf("%s: %s", res.Job.Input, res.Err))
				continue
			}

			printSubtask(fmt.Sprintf("%s: wrote %s (%d scripts, %d failed)",
				res.Job.Input, res.Output, res.Summary.Scripts, res.Summary.Failed))
		}

		if failed := batch.Failed(results); failed > 0 {
			return eris.Errorf("%d of %d jobs failed", failed, len(results))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
}
