// Package errors classifies the failures of a conversion run so callers can
// decide which ones are isolated to a single file and which ones end the run.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation decisions.
type Kind string

const (
	KindInputNotFound   Kind = "input_not_found"
	KindDirectoryCreate Kind = "directory_create"
	KindDecode          Kind = "decode"
	KindEncode          Kind = "encode"
	KindArchiveWrite    Kind = "archive_write"
	KindOutputConflict  Kind = "output_conflict"
	KindConfig          Kind = "config"
)

// Error is the structured error type used throughout the module.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s %s: %v", e.Kind, e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind.
func New(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Wrap is New that passes nil through.
func Wrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return New(kind, op, path, err)
}

// IsKind reports whether any error in err's chain is an *Error of kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Fatal reports whether err must abort the whole run rather than one file.
func Fatal(err error) bool {
	return IsKind(err, KindInputNotFound) || IsKind(err, KindArchiveWrite) || IsKind(err, KindConfig)
}

var (
	ErrInputNotFound     = errors.New("input path does not exist")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrNameCollision     = errors.New("output name already produced by another input")
	ErrOutputIsSource    = errors.New("output would overwrite a source file")
)
