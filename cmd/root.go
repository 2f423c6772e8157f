package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apperrors "squeeze/internal/errors"
)

var (
	flagConfig     string
	flagOutput     string
	flagFormat     string
	flagSize       string
	flagFit        bool
	flagMaxKB      int
	flagZip        string
	flagWorkers    int
	flagStrategy   string
	flagAutoOrient bool
	flagProgress   string
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "squeeze",
	Short:         "squeeze - resize and compress images to a size budget",
	Long:          "squeeze converts images to a target format and dimensions, picking the highest encoder quality that keeps each file under a size budget.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Run-level failures exit 1; a single file
// that could not be converted exits 2.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && !apperrors.Fatal(err) {
		return 2
	}
	return 1
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "YAML config file")
	flags.StringVarP(&flagOutput, "output", "o", "output", "output directory")
	flags.StringVarP(&flagFormat, "format", "f", "JPG", "target format (jpg, jpeg, png, gif, bmp, tiff)")
	flags.StringVarP(&flagSize, "size", "s", "1000x1000", "target size as WxH")
	flags.BoolVar(&flagFit, "fit", false, "treat size as maximum bounds and keep the aspect ratio")
	flags.IntVarP(&flagMaxKB, "max-kb", "k", 50, "maximum output size per file in KB")
	flags.StringVarP(&flagZip, "zip", "z", "", "bundle outputs into this zip file inside the output directory")
	flags.IntVarP(&flagWorkers, "workers", "w", 0, "parallel workers (0 = one per CPU)")
	flags.StringVar(&flagStrategy, "strategy", "best", "quality search result: best or last-probe")
	flags.BoolVar(&flagAutoOrient, "auto-orient", false, "apply the EXIF orientation before resizing")
	flags.StringVar(&flagProgress, "progress", "tui", "progress display: tui, bars or none")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}
