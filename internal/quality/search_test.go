package quality

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"squeeze/internal/codec"
	apperrors "squeeze/internal/errors"
)

// linearEncoder emits quality*perStep bytes and records every probe.
type linearEncoder struct {
	perStep int
	probes  []int
}

func (e *linearEncoder) Encode(_ context.Context, _ image.Image, q int) ([]byte, error) {
	e.probes = append(e.probes, q)
	return make([]byte, q*e.perStep), nil
}

var blank = image.NewNRGBA(image.Rect(0, 0, 1, 1))

func TestSearchShortcutWhenSourceFits(t *testing.T) {
	enc := &linearEncoder{perStep: 100}
	out, err := Search(context.Background(), blank, enc, Budget{TargetBytes: 5000, OriginalBytes: 4000}, StrategyBest)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !out.Shortcut || out.Attempts != 1 || out.Quality != MaxQuality {
		t.Fatalf("expected single top-quality encode, got %+v", out)
	}
	if len(enc.probes) != 1 || enc.probes[0] != MaxQuality {
		t.Fatalf("probes = %v", enc.probes)
	}
	// The converted output is larger than the budget; the shortcut keeps it.
	if out.WithinBudget || out.Size() != 10000 {
		t.Fatalf("shortcut output should overshoot: size=%d within=%v", out.Size(), out.WithinBudget)
	}
}

func TestSearchExactMatchStrategies(t *testing.T) {
	budget := Budget{TargetBytes: 5000, OriginalBytes: 1 << 20}

	best, err := Search(context.Background(), blank, &linearEncoder{perStep: 100}, budget, StrategyBest)
	if err != nil {
		t.Fatalf("Search best: %v", err)
	}
	if best.Quality != 50 || !best.WithinBudget || best.Size() != 5000 {
		t.Fatalf("best strategy = %+v (size %d)", best, best.Size())
	}

	legacy := &linearEncoder{perStep: 100}
	last, err := Search(context.Background(), blank, legacy, budget, StrategyLastProbe)
	if err != nil {
		t.Fatalf("Search last-probe: %v", err)
	}
	if last.Quality != legacy.probes[len(legacy.probes)-1] {
		t.Fatalf("last-probe returned q=%d, last probe was %d", last.Quality, legacy.probes[len(legacy.probes)-1])
	}
	if last.Quality != 49 {
		t.Fatalf("last-probe expected q=49, got %d (probes %v)", last.Quality, legacy.probes)
	}
}

func TestSearchBoundsAndAttempts(t *testing.T) {
	for target := int64(0); target <= 11000; target += 37 {
		enc := &linearEncoder{perStep: 100}
		out, err := Search(context.Background(), blank, enc, Budget{TargetBytes: target, OriginalBytes: 1 << 30}, StrategyBest)
		if err != nil {
			t.Fatalf("target %d: %v", target, err)
		}
		if out.Attempts > 7 || out.Attempts != len(enc.probes) {
			t.Fatalf("target %d: %d attempts (probes %v)", target, out.Attempts, enc.probes)
		}
		for _, q := range enc.probes {
			if q < MinQuality || q > MaxQuality {
				t.Fatalf("target %d probed out of range q=%d", target, q)
			}
		}

		want := int(target / 100)
		if want > MaxQuality {
			want = MaxQuality
		}
		if want < MinQuality {
			if out.Quality != MinQuality || out.WithinBudget {
				t.Fatalf("target %d unattainable: got %+v", target, out)
			}
			continue
		}
		if out.Quality != want || !out.WithinBudget {
			t.Fatalf("target %d: got q=%d within=%v, want q=%d", target, out.Quality, out.WithinBudget, want)
		}
	}
}

func TestSearchUnattainableReturnsLastAttempt(t *testing.T) {
	enc := &linearEncoder{perStep: 1000}
	out, err := Search(context.Background(), blank, enc, Budget{TargetBytes: 10, OriginalBytes: 1 << 20}, StrategyBest)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if out.WithinBudget || out.Quality != enc.probes[len(enc.probes)-1] || out.Quality != MinQuality {
		t.Fatalf("unexpected outcome %+v (probes %v)", out, enc.probes)
	}
}

type bumpyEncoder struct{ sizes map[int]int }

func (e bumpyEncoder) Encode(_ context.Context, _ image.Image, q int) ([]byte, error) {
	n, ok := e.sizes[q]
	if !ok {
		n = q * 100
	}
	return make([]byte, n), nil
}

func TestSearchBestIgnoresLaterOvershoot(t *testing.T) {
	// q=50 fits, q=75 overshoots, and the search then probes downward.
	// Non-monotonic sizes must not make the best candidate regress.
	enc := bumpyEncoder{sizes: map[int]int{50: 4000, 75: 9000, 62: 9000, 56: 9000, 53: 9000, 51: 9000}}
	out, err := Search(context.Background(), blank, enc, Budget{TargetBytes: 5000, OriginalBytes: 1 << 20}, StrategyBest)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if out.Quality != 50 || !out.WithinBudget {
		t.Fatalf("expected q=50 within budget, got %+v", out)
	}
}

func TestSearchEncodeErrorPropagates(t *testing.T) {
	boom := errors.New("disk full")
	enc := codec.EncoderFunc(func(_ context.Context, _ image.Image, q int) ([]byte, error) {
		if q < 50 {
			return nil, boom
		}
		return make([]byte, q*100), nil
	})

	_, err := Search(context.Background(), blank, enc, Budget{TargetBytes: 1000, OriginalBytes: 1 << 20}, StrategyBest)
	if !apperrors.IsKind(err, apperrors.KindEncode) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped encode error, got %v", err)
	}
}

func TestSearchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Search(ctx, blank, &linearEncoder{perStep: 1}, Budget{TargetBytes: 10, OriginalBytes: 100}, StrategyBest)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestSearchRealJPEG(t *testing.T) {
	img := noise(256, 256)
	enc, err := codec.EncoderFor(codec.FormatJPG)
	if err != nil {
		t.Fatalf("EncoderFor: %v", err)
	}

	budget := Budget{TargetBytes: 12 * 1024, OriginalBytes: 1 << 20}
	out, err := Search(context.Background(), img, enc, budget, StrategyBest)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if out.Attempts > 7 || out.Quality < MinQuality || out.Quality > MaxQuality {
		t.Fatalf("unexpected outcome q=%d attempts=%d", out.Quality, out.Attempts)
	}
	if out.WithinBudget && out.Size() > budget.TargetBytes {
		t.Fatalf("within budget but %d > %d", out.Size(), budget.TargetBytes)
	}
}

func TestCompressToFileAtomic(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(dest, []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := CompressToFile(context.Background(), blank, &linearEncoder{perStep: 100},
		Budget{TargetBytes: 3000, OriginalBytes: 1 << 20}, StrategyBest, dest)
	if err != nil {
		t.Fatalf("CompressToFile: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if int64(len(got)) != out.Size() || out.Quality != 30 {
		t.Fatalf("dest holds %d bytes, outcome %d bytes q=%d", len(got), out.Size(), out.Quality)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the output file, found %d entries", len(entries))
	}
}

func TestCompressToFileMissingDir(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nope", "photo.jpg")
	_, err := CompressToFile(context.Background(), blank, &linearEncoder{perStep: 1},
		Budget{TargetBytes: 3000, OriginalBytes: 1}, StrategyBest, dest)
	if !apperrors.IsKind(err, apperrors.KindEncode) {
		t.Fatalf("expected encode error, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("no file should exist at dest")
	}
}

func TestParseStrategy(t *testing.T) {
	for name, want := range map[string]Strategy{"": StrategyBest, "best": StrategyBest, "last-probe": StrategyLastProbe} {
		got, err := ParseStrategy(name)
		if err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseStrategy("linear"); err == nil {
		t.Errorf("expected error for unknown strategy")
	}
}

func noise(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(7))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 0xff})
		}
	}
	return img
}
