// Package raster decodes source images into opaque RGB buffers sized by a
// Policy.
package raster

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"

	apperrors "squeeze/internal/errors"
	"squeeze/pkg/imgutil"
)

// Options tune decoding.
type Options struct {
	// AutoOrient applies the EXIF orientation tag before sizing.
	AutoOrient bool
	Logger     *slog.Logger
}

// Buffer is a decoded, resized image. Pixels are opaque: every alpha byte is
// 0xff.
type Buffer struct {
	Image        *image.NRGBA
	Width        int
	Height       int
	SourceKind   imgutil.Kind
	SourceWidth  int
	SourceHeight int
	Orientation  int
}

// DecodeAndResize opens path, flattens it to three channels and applies
// policy with a Lanczos filter. The source file is only read.
func DecodeAndResize(path string, policy Policy, opts Options) (*Buffer, error) {
	if policy.Width <= 0 || policy.Height <= 0 {
		return nil, apperrors.New(apperrors.KindDecode, "resize", path, apperrors.ErrInvalidDimensions)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDecode, "open", path, err)
	}
	defer f.Close()

	kind, err := imgutil.SniffReader(f)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDecode, "sniff", path, err)
	}
	if kind == imgutil.KindUnknown {
		return nil, apperrors.New(apperrors.KindDecode, "sniff", path, apperrors.ErrUnsupportedFormat)
	}
	if ext := imgutil.KindForExtension(path); ext != imgutil.KindUnknown && ext != kind && opts.Logger != nil {
		opts.Logger.Warn("extension does not match content", "path", path, "extension", ext, "content", kind)
	}

	orientation := 1
	if opts.AutoOrient {
		o, err := readOrientation(f)
		if err != nil && opts.Logger != nil {
			opts.Logger.Debug("exif unreadable, keeping orientation", "path", path, "err", err)
		}
		orientation = o
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, apperrors.New(apperrors.KindDecode, "seek", path, err)
	}

	src, err := imaging.Decode(f)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDecode, "decode", path, err)
	}
	src = orient(src, orientation)

	rgb := opaque(src)
	srcB := rgb.Bounds()
	if srcB.Dx() == 0 || srcB.Dy() == 0 {
		return nil, apperrors.New(apperrors.KindDecode, "decode", path,
			fmt.Errorf("%w: empty image", apperrors.ErrInvalidDimensions))
	}

	w, h := policy.Dims(srcB.Dx(), srcB.Dy())
	out := rgb
	if w != srcB.Dx() || h != srcB.Dy() {
		out = imaging.Resize(rgb, w, h, imaging.Lanczos)
	}

	return &Buffer{
		Image:        out,
		Width:        w,
		Height:       h,
		SourceKind:   kind,
		SourceWidth:  srcB.Dx(),
		SourceHeight: srcB.Dy(),
		Orientation:  orientation,
	}, nil
}

// opaque copies img into a zero-origin NRGBA and drops alpha, keeping each
// pixel's colour. Palette images are expanded by the copy.
func opaque(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
