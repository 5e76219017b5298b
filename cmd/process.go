package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cutzel/oracle-postprocess/pkg/rbxlx"
)

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	output, err := cmd.Flags().GetString("output")
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

	printTask(fmt.Sprintf("Processing %s", args[0]))
	reporter := newProgressReporter(cfg)
	summary, err := rbxlx.Process(ctx, rbxlx.Params{
		InputPath:  args[0],
		OutputPath: output,
		Client:     client,
		Report:     reporter.Report,
	})
	reporter.Finish()
	if err != nil {
		return err
	}

	switch {
	case summary.Scripts == 0:
		printSubtask("No script dumps found, copied the document unchanged")
	case summary.Failed > 0:
		printError(fmt.Sprintf("%d of %d scripts failed to decompile, see the notes in the output", summary.Failed, summary.Scripts))
	default:
		printSubtask(fmt.Sprintf("Decompiled %d scripts", summary.Scripts))
	}

	printTask(fmt.Sprintf("Wrote %s (%.1f KiB) in %s", output,
		float64(summary.Bytes)/1024, summary.Elapsed.Round(time.Millisecond)))

	return nil
}
