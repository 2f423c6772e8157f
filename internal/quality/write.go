package quality

import (
	"context"
	"image"
	"os"
	"path/filepath"

	"squeeze/internal/codec"
	apperrors "squeeze/internal/errors"
)

// CompressToFile runs Search and stores the chosen bytes at dest. The bytes
// go to a temp file beside dest which is synced and renamed into place, so
// dest either keeps its previous content or holds the complete new file.
func CompressToFile(ctx context.Context, img image.Image, enc codec.Encoder, budget Budget, strategy Strategy, dest string) (Outcome, error) {
	out, err := Search(ctx, img, enc, budget, strategy)
	if err != nil {
		return Outcome{}, apperrors.Wrap(apperrors.KindEncode, "compress", dest, unwrapKind(err))
	}
	if err := WriteFileAtomic(dest, out.Data, 0o644); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// WriteFileAtomic writes data to path via a temp file and rename.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".squeeze-*.tmp")
	if err != nil {
		return apperrors.New(apperrors.KindEncode, "create temp", path, err)
	}
	defer os.Remove(tmpFile.Name())

	if err := tmpFile.Chmod(perm); err != nil {
		_ = tmpFile.Close()
		return apperrors.New(apperrors.KindEncode, "chmod", path, err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return apperrors.New(apperrors.KindEncode, "write", path, err)
	}

	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return apperrors.New(apperrors.KindEncode, "sync", path, err)
	}
	if err := tmpFile.Close(); err != nil {
		return apperrors.New(apperrors.KindEncode, "close", path, err)
	}

	if err := replaceFile(tmpFile.Name(), path); err != nil {
		return apperrors.New(apperrors.KindEncode, "rename", path, err)
	}
	return nil
}

func replaceFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}

// unwrapKind strips one *Error layer so re-wrapping with a path does not
// nest the same kind twice.
func unwrapKind(err error) error {
	if e, ok := err.(*apperrors.Error); ok && e.Path == "" {
		return e.Err
	}
	return err
}
