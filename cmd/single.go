package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"squeeze/internal/pipeline"
	"squeeze/internal/tui"
)

var singleCmd = &cobra.Command{
	Use:   "single [flags] <input-file>",
	Short: "Convert one image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := newLogger(cfg)
		opts, err := pipelineOptions(cfg, log)
		if err != nil {
			return err
		}

		res := pipeline.ProcessOne(cmd.Context(), args[0], opts)
		if res.Err != nil {
			return res.Err
		}

		fmt.Fprintf(os.Stdout, "Processed file: %s\n", res.Path)
		fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.FileRows(res)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(singleCmd)
}
