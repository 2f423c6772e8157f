package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"squeeze/internal/pipeline"
	"squeeze/internal/tui"
)

var multipleCmd = &cobra.Command{
	Use:   "multiple [flags] <input-dir>",
	Short: "Convert every supported image in a directory",
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

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		updates, wait := startProgress(cfg.Progress, cancel)
		res, err := pipeline.ProcessMany(ctx, args[0], opts, updates)
		wait()
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, headingStyle.Render("Processed files:"))
		for _, name := range res.Processed {
			fmt.Fprintf(os.Stdout, "  %s %s\n", bulletStyle.Render("-"), name)
		}
		for _, f := range res.Failed {
			fmt.Fprintf(os.Stdout, "  %s %s\n", failStyle.Render("x"), f.Source)
		}
		fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.BatchRows(res)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(multipleCmd)
}

var (
	headingStyle = lipgloss.NewStyle().Foreground(tui.ColorAccent).Bold(true)
	bulletStyle  = lipgloss.NewStyle().Foreground(tui.ColorDim)
	failStyle    = lipgloss.NewStyle().Foreground(tui.ColorWarn).Bold(true)
)
