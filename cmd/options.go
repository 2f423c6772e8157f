package cmd

import (
	"context"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"squeeze/internal/codec"
	"squeeze/internal/config"
	"squeeze/internal/pipeline"
	"squeeze/internal/quality"
	"squeeze/internal/raster"
	"squeeze/internal/tui"
)

// loadConfig layers defaults, the optional config file and explicitly set
// flags, in that order.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output = flagOutput
	}
	if flags.Changed("format") {
		cfg.Format = flagFormat
	}
	if flags.Changed("size") {
		cfg.Size = flagSize
	}
	if flags.Changed("fit") {
		cfg.Fit = flagFit
	}
	if flags.Changed("max-kb") {
		cfg.MaxKB = flagMaxKB
	}
	if flags.Changed("zip") {
		cfg.Zip = flagZip
	}
	if flags.Changed("workers") {
		cfg.Workers = flagWorkers
	}
	if flags.Changed("strategy") {
		cfg.Strategy = flagStrategy
	}
	if flags.Changed("auto-orient") {
		cfg.AutoOrient = flagAutoOrient
	}
	if flags.Changed("progress") {
		cfg.Progress = flagProgress
	}
	if flags.Changed("verbose") {
		cfg.Verbose = flagVerbose
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case cfg.Verbose:
		level = slog.LevelDebug
	case cfg.Progress == config.ProgressTUI:
		// Keep per-file lines from tearing the live view.
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// pipelineOptions converts a validated config.
func pipelineOptions(cfg config.Config, log *slog.Logger) (pipeline.Options, error) {
	format, err := codec.ParseFormat(cfg.Format)
	if err != nil {
		return pipeline.Options{}, err
	}
	w, h, err := config.ParseDims(cfg.Size)
	if err != nil {
		return pipeline.Options{}, err
	}
	policy := raster.Fixed(w, h)
	if cfg.Fit {
		policy = raster.FitWithin(w, h)
	}
	strategy, err := quality.ParseStrategy(cfg.Strategy)
	if err != nil {
		return pipeline.Options{}, err
	}

	return pipeline.Options{
		OutputDir:   cfg.Output,
		Format:      format,
		Policy:      policy,
		MaxKB:       cfg.MaxKB,
		ArchiveName: cfg.Zip,
		Workers:     cfg.Workers,
		Strategy:    strategy,
		AutoOrient:  cfg.AutoOrient,
		Logger:      log,
	}, nil
}

// startProgress returns the channel to feed and a func that closes it and
// waits for the display to finish.
func startProgress(mode string, cancel context.CancelFunc) (chan pipeline.ProgressUpdate, func()) {
	updates := make(chan pipeline.ProgressUpdate, 64)
	uiDone := make(chan struct{})

	switch mode {
	case config.ProgressTUI:
		program := tea.NewProgram(tui.NewModel(updates).WithInterrupt(cancel), tea.WithOutput(os.Stderr))
		go func() {
			_, _ = program.Run()
			// Keep the producer unblocked if the program exits early.
			tui.Drain(updates)
			close(uiDone)
		}()
	case config.ProgressBars:
		go func() {
			tui.RunBars(updates, os.Stderr)
			close(uiDone)
		}()
	default:
		go func() {
			tui.Drain(updates)
			close(uiDone)
		}()
	}

	return updates, func() {
		close(updates)
		<-uiDone
	}
}
