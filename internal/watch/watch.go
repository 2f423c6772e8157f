// Package watch converts images as they land in a directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	apperrors "squeeze/internal/errors"
	"squeeze/internal/pipeline"
	"squeeze/pkg/imgutil"
)

const DefaultDebounce = 500 * time.Millisecond

type Options struct {
	Pipeline pipeline.Options
	// Debounce is how long a file must stay quiet before it is converted.
	Debounce time.Duration
	// OnResult, when set, receives every conversion outcome.
	OnResult func(pipeline.ProcessedFile)
}

// Watcher monitors one directory, non-recursively.
type Watcher struct {
	dir     string
	opts    Options
	fsw     *fsnotify.Watcher
	ready   chan string
	done    chan struct{}
	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New validates dir and starts watching it. The output directory must not be
// the watched directory, or every output would be picked up as new input.
func New(dir string, opts Options) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.New(apperrors.KindInputNotFound, "watch", dir, apperrors.ErrInputNotFound)
		}
		return nil, apperrors.New(apperrors.KindInputNotFound, "watch", dir, err)
	}
	if !info.IsDir() {
		return nil, apperrors.New(apperrors.KindInputNotFound, "watch", dir, fmt.Errorf("not a directory"))
	}
	if sameDir(dir, opts.Pipeline.OutputDir) {
		return nil, apperrors.New(apperrors.KindConfig, "watch", dir, fmt.Errorf("output directory must differ from the watched directory"))
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch folder %s: %w", dir, err)
	}

	return &Watcher{
		dir:     dir,
		opts:    opts,
		fsw:     fsw,
		ready:   make(chan string, 64),
		done:    make(chan struct{}),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Run converts settled files until ctx is done or a fatal error occurs.
// Files are converted one at a time. Run may only be called once.
func (w *Watcher) Run(ctx context.Context) error {
	log := w.opts.Pipeline.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	defer w.stop()

	log.Info("watching", "dir", w.dir, "output", w.opts.Pipeline.OutputDir)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) == filepath.Clean(w.dir) && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				return apperrors.New(apperrors.KindInputNotFound, "watch", w.dir, apperrors.ErrInputNotFound)
			}
			if !w.relevant(event) {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "err", err)

		case path := <-w.ready:
			res := pipeline.ProcessOne(ctx, path, w.opts.Pipeline)
			if w.opts.OnResult != nil {
				w.opts.OnResult(res)
			}
			switch {
			case res.Err == nil:
			case apperrors.IsKind(res.Err, apperrors.KindInputNotFound):
				// Removed before it settled.
				log.Debug("file vanished", "file", path)
			case apperrors.Fatal(res.Err) || apperrors.IsKind(res.Err, apperrors.KindDirectoryCreate):
				return res.Err
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return imgutil.SupportedExtension(base)
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(w.opts.Debounce, func() { w.fire(path, timer) })
	w.pending[path] = timer
}

// fire queues path unless timer was superseded by a later event; Stop does
// not cancel a callback that is already running.
func (w *Watcher) fire(path string, timer *time.Timer) {
	w.mu.Lock()
	if w.pending[path] != timer {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	select {
	case w.ready <- path:
	case <-w.done:
	}
}

func (w *Watcher) stop() {
	close(w.done)
	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	_ = w.fsw.Close()
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
