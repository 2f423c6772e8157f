package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"squeeze/internal/archive"
	apperrors "squeeze/internal/errors"
	"squeeze/pkg/imgutil"
)

// Discover lists the supported image files directly inside dir, sorted by
// name. Subdirectories are not descended into; symlinks count when they
// resolve to a regular file.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !imgutil.SupportedExtension(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			mode = info.Mode()
		}
		if !mode.IsRegular() {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// ProcessMany converts every supported image directly inside inputDir.
// Per-file failures are collected on the result and never abort the batch.
// The returned error is reserved for batch-level failures: a missing input
// directory, an unusable output directory, or an archive that could not be
// written.
func ProcessMany(ctx context.Context, inputDir string, opts Options, updates chan<- ProgressUpdate) (Result, error) {
	log := logger(opts)
	result := Result{}

	info, err := os.Stat(inputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, apperrors.New(apperrors.KindInputNotFound, "stat", inputDir, apperrors.ErrInputNotFound)
		}
		return result, apperrors.New(apperrors.KindInputNotFound, "stat", inputDir, err)
	}
	if !info.IsDir() {
		return result, apperrors.New(apperrors.KindInputNotFound, "stat", inputDir, fmt.Errorf("not a directory"))
	}

	files, err := Discover(inputDir)
	if err != nil {
		return result, apperrors.New(apperrors.KindInputNotFound, "readdir", inputDir, err)
	}
	jobs, rejected := planJobs(files, opts)
	result.Failed = append(result.Failed, rejected...)
	result.Summary.Total = len(files)
	result.Summary.Errors = len(rejected)
	if updates != nil && len(files) > 0 {
		updates <- ProgressUpdate{TotalDelta: len(files)}
		for _, c := range rejected {
			updates <- ProgressUpdate{File: c.Source, ErrorDelta: 1}
		}
	}
	for _, c := range rejected {
		log.Error("processing failed", "file", c.Source, "err", c.Err)
	}

	var aw archiveWriter
	if opts.ArchiveName != "" {
		if err := ensureDir(opts.OutputDir, log); err != nil {
			return result, err
		}
		aw, err = openArchive(filepath.Join(opts.OutputDir, opts.ArchiveName))
		if err != nil {
			return result, err
		}
	}

	done := run(ctx, jobs, opts, updates)
	for _, res := range done {
		if res.OK() {
			result.Files = append(result.Files, res)
		} else {
			result.Failed = append(result.Failed, res)
			result.Summary.Errors++
		}
	}
	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Name < result.Files[j].Name })
	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i].Source < result.Failed[j].Source })

	if err := ctx.Err(); err != nil {
		if aw != nil {
			aw.Abort()
		}
		result.tally()
		return result, err
	}

	if aw != nil {
		if err := bundle(aw, &result, opts); err != nil {
			aw.Abort()
			result.tally()
			return result, err
		}
		result.Archive = aw.Path()
		log.Info("archive written", "archive", result.Archive, "entries", len(result.Files))
	}

	result.tally()
	return result, nil
}

// planJobs assigns output names. The first input, by name, claims an output
// name; later inputs mapping to the same name fail with ErrNameCollision.
// An output that would land on any input file fails with ErrOutputIsSource.
func planJobs(files []string, opts Options) ([]Job, []ProcessedFile) {
	var jobs []Job
	var rejected []ProcessedFile
	sources := make(map[string]string, len(files))
	for _, path := range files {
		sources[absPath(path)] = path
	}
	claimed := make(map[string]string, len(files))
	for _, path := range files {
		name := OutputName(path, opts.Format)
		dest := filepath.Join(opts.OutputDir, name)
		reject := func(err error) {
			rejected = append(rejected, ProcessedFile{
				Source: path,
				Name:   name,
				Path:   dest,
				Err:    apperrors.New(apperrors.KindOutputConflict, "plan", path, err),
			})
		}
		if src, ok := sources[absPath(dest)]; ok {
			reject(fmt.Errorf("%w: %s", apperrors.ErrOutputIsSource, filepath.Base(src)))
			continue
		}
		if first, ok := claimed[name]; ok {
			reject(fmt.Errorf("%w: %s already produced by %s", apperrors.ErrNameCollision, name, filepath.Base(first)))
			continue
		}
		claimed[name] = path
		jobs = append(jobs, Job{Path: path, Name: name})
	}
	return jobs, rejected
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func run(ctx context.Context, jobs []Job, opts Options, updates chan<- ProgressUpdate) []ProcessedFile {
	queue := make(chan Job)
	results := make(chan ProcessedFile)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			worker(ctx, queue, results, opts)
		}()
	}

	var collected []ProcessedFile
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			collected = append(collected, res)
			if updates == nil {
				continue
			}
			if res.OK() {
				updates <- ProgressUpdate{File: res.Source, ProcessedDelta: 1, BytesSavedDelta: res.SourceSize - res.Size}
			} else {
				updates <- ProgressUpdate{File: res.Source, ErrorDelta: 1}
			}
		}
	}()

	go func() {
		defer close(queue)
		for _, job := range jobs {
			select {
			case queue <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)
	<-collectorDone
	return collected
}

func worker(ctx context.Context, jobs <-chan Job, results chan<- ProcessedFile, opts Options) {
	for job := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- processFile(ctx, job, opts)
	}
}

// bundle moves every successful output into the archive. A loose file that
// has vanished since it was written is reported and dropped from the
// success list; any archive write failure is returned.
func bundle(aw archiveWriter, result *Result, opts Options) error {
	log := logger(opts)
	kept := result.Files[:0]
	for _, f := range result.Files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			log.Error("file not found", "file", f.Path, "err", err)
			f.Err = apperrors.New(apperrors.KindArchiveWrite, "read", f.Path, err)
			result.Failed = append(result.Failed, f)
			result.Summary.Errors++
			continue
		}
		if err := aw.Add(f.Name, data); err != nil {
			return err
		}
		if err := removeFile(f.Path); err != nil {
			log.Warn("could not remove archived file", "file", f.Path, "err", err)
			result.Summary.LooseLeft++
		}
		f.Path = aw.Path()
		kept = append(kept, f)
	}
	result.Files = kept
	return aw.Close()
}

type archiveWriter interface {
	Add(name string, data []byte) error
	Close() error
	Abort()
	Path() string
}

var (
	openArchive = func(path string) (archiveWriter, error) { return archive.Open(path) }
	removeFile  = os.Remove
)

func (r *Result) tally() {
	r.Processed = r.Processed[:0]
	r.Summary.Processed = len(r.Files)
	r.Summary.BytesIn, r.Summary.BytesOut = 0, 0
	for _, f := range r.Files {
		r.Processed = append(r.Processed, f.Name)
		r.Summary.BytesIn += f.SourceSize
		r.Summary.BytesOut += f.Size
	}
}
