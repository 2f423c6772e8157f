// Package quality finds the encoder quality that fits an image into a byte
// budget.
//
// The search is a binary search over [MinQuality, MaxQuality]. A probe whose
// size is below the target moves the search to higher qualities; a probe at
// or above the target moves it lower. With 100 qualities the search ends after
// at most seven encodes.
package quality

import (
	"context"
	"fmt"
	"image"

	"squeeze/internal/codec"
	apperrors "squeeze/internal/errors"
)

const (
	MinQuality = 1
	MaxQuality = 100
)

// Strategy selects which probe the search returns.
type Strategy int

const (
	// StrategyBest returns the highest-quality probe whose size is within
	// the budget, falling back to the last probe when none is.
	StrategyBest Strategy = iota
	// StrategyLastProbe returns the last probe evaluated, whatever its
	// size. This reproduces the behavior of tools that overwrite the output
	// on every probe.
	StrategyLastProbe
)

func (s Strategy) String() string {
	if s == StrategyLastProbe {
		return "last-probe"
	}
	return "best"
}

// ParseStrategy maps a configuration name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "best":
		return StrategyBest, nil
	case "last-probe":
		return StrategyLastProbe, nil
	}
	return StrategyBest, fmt.Errorf("unknown search strategy %q", name)
}

// Budget is the size constraint for one output file.
type Budget struct {
	// TargetBytes is the maximum encoded size.
	TargetBytes int64
	// OriginalBytes is the source file's size on disk. When it already fits
	// TargetBytes the search is skipped.
	OriginalBytes int64
}

// BudgetKB builds a Budget from a size in kilobytes.
func BudgetKB(kb int, originalBytes int64) Budget {
	return Budget{TargetBytes: int64(kb) * 1024, OriginalBytes: originalBytes}
}

// Outcome is the encode chosen by Search.
type Outcome struct {
	Data     []byte
	Quality  int
	Attempts int
	// Shortcut is set when the source already fit and a single encode at
	// MaxQuality was used. The converted output can still exceed the budget.
	Shortcut     bool
	WithinBudget bool
}

// Size returns len(o.Data) as int64.
func (o Outcome) Size() int64 { return int64(len(o.Data)) }

type probe struct {
	quality int
	data    []byte
}

// Search encodes img until it finds the quality that best meets budget.
// Encoder failures abort the search and are returned as encode errors.
func Search(ctx context.Context, img image.Image, enc codec.Encoder, budget Budget, strategy Strategy) (Outcome, error) {
	if budget.OriginalBytes <= budget.TargetBytes {
		data, err := encodeAt(ctx, img, enc, MaxQuality)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Data:         data,
			Quality:      MaxQuality,
			Attempts:     1,
			Shortcut:     true,
			WithinBudget: int64(len(data)) <= budget.TargetBytes,
		}, nil
	}

	var (
		last     probe
		best     probe
		haveBest bool
		attempts int
	)

	low, high := MinQuality, MaxQuality
	for low <= high {
		if err := ctx.Err(); err != nil {
			return Outcome{}, apperrors.Wrap(apperrors.KindEncode, "quality.search", "", err)
		}

		mid := (low + high) / 2
		data, err := encodeAt(ctx, img, enc, mid)
		if err != nil {
			return Outcome{}, err
		}
		attempts++
		last = probe{quality: mid, data: data}

		size := int64(len(data))
		if size <= budget.TargetBytes && (!haveBest || mid > best.quality) {
			best, haveBest = last, true
		}

		if size < budget.TargetBytes {
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	chosen := last
	if strategy == StrategyBest && haveBest {
		chosen = best
	}

	return Outcome{
		Data:         chosen.data,
		Quality:      chosen.quality,
		Attempts:     attempts,
		WithinBudget: int64(len(chosen.data)) <= budget.TargetBytes,
	}, nil
}

func encodeAt(ctx context.Context, img image.Image, enc codec.Encoder, q int) ([]byte, error) {
	data, err := enc.Encode(ctx, img, q)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindEncode) {
			return nil, err
		}
		return nil, apperrors.New(apperrors.KindEncode, fmt.Sprintf("encode q=%d", q), "", err)
	}
	return data, nil
}
