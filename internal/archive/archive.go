// Package archive bundles output files into a single zip container.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"

	apperrors "squeeze/internal/errors"
)

var errClosed = errors.New("archive already closed")

// Writer accumulates stored entries in a zip file. The archive is built in
// a temp file next to its final path and only renamed into place by Close,
// so a failed run never leaves a half-written archive behind.
//
// Writer is safe for concurrent use; writes are serialized.
type Writer struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	zw      *zip.Writer
	names   map[string]struct{}
	entries []string
	done    bool
}

// Open starts a new archive that will live at path. The parent directory
// must exist.
func Open(path string) (*Writer, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".squeeze-*.zip.tmp")
	if err != nil {
		return nil, apperrors.New(apperrors.KindArchiveWrite, "open archive", path, err)
	}
	return &Writer{
		path:  path,
		file:  tmp,
		zw:    zip.NewWriter(tmp),
		names: make(map[string]struct{}),
	}, nil
}

// Path returns the final location of the archive.
func (w *Writer) Path() string { return w.path }

// Add stores data under name. Names must be bare file names and unique.
func (w *Writer) Add(name string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return apperrors.New(apperrors.KindArchiveWrite, "add", name, errClosed)
	}
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return apperrors.New(apperrors.KindArchiveWrite, "add", name, fmt.Errorf("entry name must be a bare file name"))
	}
	if _, dup := w.names[name]; dup {
		return apperrors.New(apperrors.KindArchiveWrite, "add", name, fmt.Errorf("duplicate entry"))
	}

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: time.Now(),
	}
	header.SetMode(0o644)

	ew, err := w.zw.CreateHeader(header)
	if err != nil {
		return apperrors.New(apperrors.KindArchiveWrite, "create header", name, err)
	}
	n, err := ew.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return apperrors.New(apperrors.KindArchiveWrite, "write entry", name, err)
	}
	// Push the entry through to the file so write failures surface here
	// rather than at Close.
	if err := w.zw.Flush(); err != nil {
		return apperrors.New(apperrors.KindArchiveWrite, "flush entry", name, err)
	}

	w.names[name] = struct{}{}
	w.entries = append(w.entries, name)
	return nil
}

// Entries returns the names added so far, in order.
func (w *Writer) Entries() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.entries...)
}

// Close finalizes the central directory and moves the archive into place.
// An archive with no entries is still a valid zip file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return nil
	}
	w.done = true
	tmpName := w.file.Name()

	if err := w.zw.Close(); err != nil {
		_ = w.file.Close()
		_ = os.Remove(tmpName)
		return apperrors.New(apperrors.KindArchiveWrite, "finalize", w.path, err)
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		_ = os.Remove(tmpName)
		return apperrors.New(apperrors.KindArchiveWrite, "sync", w.path, err)
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.New(apperrors.KindArchiveWrite, "close", w.path, err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.New(apperrors.KindArchiveWrite, "rename", w.path, err)
	}
	return nil
}

// Abort discards the archive. It is a no-op after Close.
func (w *Writer) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return
	}
	w.done = true
	_ = w.file.Close()
	_ = os.Remove(w.file.Name())
}
