package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"squeeze/internal/codec"
	apperrors "squeeze/internal/errors"
	"squeeze/internal/quality"
	"squeeze/internal/raster"
)

// OutputName returns "<stem>.<format>" for inputPath, whatever its original
// extension.
func OutputName(inputPath string, format codec.Format) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "." + format.Extension()
}

// ProcessOne decodes, resizes and budget-compresses a single file into
// opts.OutputDir. Failures are logged and reported on the result, never
// panicked or returned separately, so a caller iterating many files can
// carry on.
func ProcessOne(ctx context.Context, inputPath string, opts Options) ProcessedFile {
	return processFile(ctx, Job{Path: inputPath, Name: OutputName(inputPath, opts.Format)}, opts)
}

func processFile(ctx context.Context, job Job, opts Options) ProcessedFile {
	log := logger(opts)
	res := ProcessedFile{
		Source: job.Path,
		Name:   job.Name,
		Path:   filepath.Join(opts.OutputDir, job.Name),
	}

	fail := func(err error) ProcessedFile {
		res.Err = err
		log.Error("processing failed", "file", job.Path, "err", err)
		return res
	}

	info, err := os.Stat(job.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fail(apperrors.New(apperrors.KindInputNotFound, "stat", job.Path, apperrors.ErrInputNotFound))
		}
		return fail(apperrors.New(apperrors.KindDecode, "stat", job.Path, err))
	}
	res.SourceSize = info.Size()

	if destInfo, err := os.Stat(res.Path); err == nil && os.SameFile(info, destInfo) {
		return fail(apperrors.New(apperrors.KindOutputConflict, "plan", job.Path, apperrors.ErrOutputIsSource))
	}

	if err := ensureDir(opts.OutputDir, log); err != nil {
		return fail(err)
	}

	buf, err := raster.DecodeAndResize(job.Path, opts.Policy, raster.Options{
		AutoOrient: opts.AutoOrient,
		Logger:     log,
	})
	if err != nil {
		return fail(err)
	}
	res.Width, res.Height = buf.Width, buf.Height

	enc, err := encoderFor(opts)
	if err != nil {
		return fail(apperrors.New(apperrors.KindEncode, "encoder", job.Path, err))
	}

	budget := quality.BudgetKB(opts.MaxKB, res.SourceSize)
	outcome, err := quality.CompressToFile(ctx, buf.Image, enc, budget, opts.Strategy, res.Path)
	if err != nil {
		return fail(err)
	}

	sum := blake3.Sum256(outcome.Data)
	res.Digest = hex.EncodeToString(sum[:])
	res.Size = outcome.Size()
	res.Quality = outcome.Quality
	res.Attempts = outcome.Attempts
	res.Shortcut = outcome.Shortcut
	res.WithinBudget = outcome.WithinBudget

	log.Info("processed",
		"file", job.Path,
		"output", res.Path,
		"size", res.Size,
		"quality", res.Quality,
		"attempts", res.Attempts,
		"within_budget", res.WithinBudget,
	)
	if !res.WithinBudget {
		log.Warn("output exceeds budget", "output", res.Path, "size", res.Size, "budget", budget.TargetBytes)
	}
	return res
}

// ensureDir creates dir and its parents. MkdirAll is idempotent, so
// concurrent workers may call it for the same directory.
func ensureDir(dir string, log *slog.Logger) error {
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.New(apperrors.KindDirectoryCreate, "mkdir", dir, err)
	}
	log.Debug("created directory", "dir", dir)
	return nil
}

func encoderFor(opts Options) (codec.Encoder, error) {
	if opts.Encoder != nil {
		return opts.Encoder, nil
	}
	return codec.EncoderFor(opts.Format)
}

func logger(opts Options) *slog.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return slog.New(slog.DiscardHandler)
}
