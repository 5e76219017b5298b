package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cutzel/oracle-postprocess/pkg/bytecode"
	"github.com/cutzel/oracle-postprocess/pkg/decompiler"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <file>",
	Short: "Decompiles a single compiled chunk",
	Long: `Decompiles one loose chunk outside any place file. The file can hold raw
bytecode, a base64 encoded chunk or a dumped script source with a bytecode
marker. The decompiled source goes to stdout unless -o is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		chunk, err := bytecode.FromFile(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		client, cleanup, err := buildClient(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		defer shutdownClient(client)

		source, err := decompiler.Decompile(ctx, client, chunk.Base64)
		if err != nil {
			return err
		}

		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}

		if output == "" {
			fmt.Println(source)
			return nil
		}

		if err := os.WriteFile(output, []byte(source+"\n"), 0o644); err != nil {
			return err
		}

		printTask(fmt.Sprintf("Wrote %s", output))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chunkCmd)
	chunkCmd.Flags().StringP("output", "o", "", "write the decompiled source to this file instead of stdout")
}
