package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"squeeze/internal/pipeline"
	"squeeze/internal/watch"
)

var watchDebounce = watch.DefaultDebounce

var watchCmd = &cobra.Command{
	Use:   "watch [flags] <input-dir>",
	Short: "Convert images as they are added to a directory",
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

		w, err := watch.New(args[0], watch.Options{
			Pipeline: opts,
			Debounce: watchDebounce,
			OnResult: func(res pipeline.ProcessedFile) {
				if res.Err == nil {
					fmt.Fprintf(os.Stdout, "Processed file: %s\n", res.Path)
				}
			},
		})
		if err != nil {
			return err
		}
		return w.Run(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before a new file is converted")
	rootCmd.AddCommand(watchCmd)
}
