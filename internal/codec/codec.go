// Package codec maps target format names to quality-driven encoders.
package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	apperrors "squeeze/internal/errors"
)

// Format is a target format name, lowercased exactly as the user spelled it
// so "JPEG" yields ".jpeg" and "JPG" yields ".jpg".
type Format string

const (
	FormatJPG  Format = "jpg"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// Extension returns the output file extension without the dot.
func (f Format) Extension() string { return string(f) }

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := encoders[f]; !ok {
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, name)
	}
	return f, nil
}

// Encoder turns pixels into bytes at a quality in [1, 100]. Higher quality
// means larger output in expectation.
type Encoder interface {
	Encode(ctx context.Context, img image.Image, quality int) ([]byte, error)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(ctx context.Context, img image.Image, quality int) ([]byte, error)

func (fn EncoderFunc) Encode(ctx context.Context, img image.Image, quality int) ([]byte, error) {
	return fn(ctx, img, quality)
}

var encoders = map[Format]Encoder{
	FormatJPG:  EncoderFunc(encodeJPEG),
	FormatJPEG: EncoderFunc(encodeJPEG),
	FormatPNG:  EncoderFunc(encodePNG),
	FormatGIF:  EncoderFunc(encodeGIF),
	FormatBMP:  EncoderFunc(encodeBMP),
	FormatTIFF: EncoderFunc(encodeTIFF),
}

// EncoderFor returns the encoder registered for f.
func EncoderFor(f Format) (Encoder, error) {
	enc, ok := encoders[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, string(f))
	}
	return enc, nil
}

func encodeJPEG(ctx context.Context, img image.Image, quality int) ([]byte, error) {
	return encodeWith(ctx, "jpeg.encode", func(buf *bytes.Buffer) error {
		return imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(clamp(quality)))
	})
}

// PNG is lossless; quality picks the deflate effort, and faster settings
// produce larger files.
func encodePNG(ctx context.Context, img image.Image, quality int) ([]byte, error) {
	level := png.BestCompression
	switch q := clamp(quality); {
	case q > 66:
		level = png.BestSpeed
	case q > 33:
		level = png.DefaultCompression
	}
	return encodeWith(ctx, "png.encode", func(buf *bytes.Buffer) error {
		return imaging.Encode(buf, img, imaging.PNG, imaging.PNGCompressionLevel(level))
	})
}

// GIF quality scales the palette size.
func encodeGIF(ctx context.Context, img image.Image, quality int) ([]byte, error) {
	colors := clamp(quality) * 256 / 100
	if colors < 2 {
		colors = 2
	}
	return encodeWith(ctx, "gif.encode", func(buf *bytes.Buffer) error {
		return imaging.Encode(buf, img, imaging.GIF, imaging.GIFNumColors(colors))
	})
}

// BMP has no size knob.
func encodeBMP(ctx context.Context, img image.Image, _ int) ([]byte, error) {
	return encodeWith(ctx, "bmp.encode", func(buf *bytes.Buffer) error {
		return bmp.Encode(buf, img)
	})
}

func encodeTIFF(ctx context.Context, img image.Image, quality int) ([]byte, error) {
	opts := &tiff.Options{Compression: tiff.Deflate, Predictor: true}
	if clamp(quality) >= 90 {
		opts = &tiff.Options{Compression: tiff.Uncompressed}
	}
	return encodeWith(ctx, "tiff.encode", func(buf *bytes.Buffer) error {
		return tiff.Encode(buf, img, opts)
	})
}

func encodeWith(ctx context.Context, op string, fn func(*bytes.Buffer) error) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindEncode, op, "", err)
	}
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return nil, apperrors.Wrap(apperrors.KindEncode, op, "", err)
	}
	return buf.Bytes(), nil
}

func clamp(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
