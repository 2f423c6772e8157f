package pipeline

import (
	"log/slog"

	"squeeze/internal/codec"
	"squeeze/internal/quality"
	"squeeze/internal/raster"
)

type Options struct {
	OutputDir   string
	Format      codec.Format
	Policy      raster.Policy
	MaxKB       int
	ArchiveName string
	Workers     int
	Strategy    quality.Strategy
	AutoOrient  bool

	// Encoder overrides the encoder registered for Format.
	Encoder codec.Encoder
	Logger  *slog.Logger
}

type Job struct {
	Path string
	Name string
}

// ProcessedFile is the outcome of one input file.
type ProcessedFile struct {
	Source       string
	Name         string
	Path         string
	SourceSize   int64
	Size         int64
	Quality      int
	Attempts     int
	Shortcut     bool
	WithinBudget bool
	Width        int
	Height       int
	Digest       string
	Err          error
}

func (p ProcessedFile) OK() bool { return p.Err == nil }

type Summary struct {
	Total     int
	Processed int
	Errors    int
	BytesIn   int64
	BytesOut  int64
	// LooseLeft counts archived outputs whose loose copy could not be removed.
	LooseLeft int
}

// BytesSaved is the size difference between sources and outputs.
func (s Summary) BytesSaved() int64 { return s.BytesIn - s.BytesOut }

type Result struct {
	// Processed lists the output file names of successful inputs, sorted.
	Processed []string
	Files     []ProcessedFile
	Failed    []ProcessedFile
	// Archive is the archive path, empty when no archive was requested.
	Archive string
	Summary Summary
}

type ProgressUpdate struct {
	File            string
	TotalDelta      int
	ProcessedDelta  int
	ErrorDelta      int
	BytesSavedDelta int64
}
