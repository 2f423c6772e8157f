package codec

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	apperrors "squeeze/internal/errors"
	"squeeze/pkg/imgutil"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 5), B: uint8((x ^ y) * 3), A: 0xff})
		}
	}
	return img
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"JPG":   FormatJPG,
		"jpeg":  FormatJPEG,
		" Png ": FormatPNG,
		"GIF":   FormatGIF,
		"bmp":   FormatBMP,
		"TIFF":  FormatTIFF,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParseFormat("webp"); !errors.Is(err, apperrors.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
	if FormatJPEG.Extension() != "jpeg" || FormatJPG.Extension() != "jpg" {
		t.Fatalf("extension must keep the user's spelling")
	}
}

func TestEncodersProduceTheirFormat(t *testing.T) {
	img := gradient(32, 24)
	want := map[Format]imgutil.Kind{
		FormatJPG:  imgutil.KindJPEG,
		FormatJPEG: imgutil.KindJPEG,
		FormatPNG:  imgutil.KindPNG,
		FormatGIF:  imgutil.KindGIF,
		FormatBMP:  imgutil.KindBMP,
		FormatTIFF: imgutil.KindTIFF,
	}
	for f, kind := range want {
		enc, err := EncoderFor(f)
		if err != nil {
			t.Fatalf("EncoderFor(%s): %v", f, err)
		}
		for _, q := range []int{1, 50, 100} {
			data, err := enc.Encode(context.Background(), img, q)
			if err != nil {
				t.Fatalf("%s q=%d: %v", f, q, err)
			}
			got, err := imgutil.SniffReader(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("%s q=%d sniff: %v", f, q, err)
			}
			if got != kind {
				t.Errorf("%s q=%d produced %s", f, q, got)
			}
		}
	}
}

func TestJPEGQualityGrowsSize(t *testing.T) {
	img := gradient(128, 128)
	enc, _ := EncoderFor(FormatJPG)

	low, err := enc.Encode(context.Background(), img, 5)
	if err != nil {
		t.Fatalf("encode low: %v", err)
	}
	high, err := enc.Encode(context.Background(), img, 95)
	if err != nil {
		t.Fatalf("encode high: %v", err)
	}
	if len(low) >= len(high) {
		t.Fatalf("expected q=5 (%d bytes) smaller than q=95 (%d bytes)", len(low), len(high))
	}
}

func TestEncodeCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	enc, _ := EncoderFor(FormatPNG)
	_, err := enc.Encode(ctx, gradient(4, 4), 50)
	if !apperrors.IsKind(err, apperrors.KindEncode) {
		t.Fatalf("expected encode error, got %v", err)
	}
}
