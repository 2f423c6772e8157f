package raster

import "fmt"

// Mode selects how target dimensions are derived from the source.
type Mode int

const (
	// ModeFixed resizes to exactly Width x Height, ignoring aspect ratio.
	ModeFixed Mode = iota
	// ModeFitWithin scales down, preserving aspect ratio, until both bounds
	// hold. Sources already within bounds keep their size.
	ModeFitWithin
)

func (m Mode) String() string {
	if m == ModeFitWithin {
		return "fit"
	}
	return "fixed"
}

// Policy is a sizing rule.
type Policy struct {
	Mode   Mode
	Width  int
	Height int
}

func Fixed(w, h int) Policy     { return Policy{Mode: ModeFixed, Width: w, Height: h} }
func FitWithin(w, h int) Policy { return Policy{Mode: ModeFitWithin, Width: w, Height: h} }

func (p Policy) String() string {
	return fmt.Sprintf("%s %dx%d", p.Mode, p.Width, p.Height)
}

// Dims returns the output size for a srcW x srcH source.
func (p Policy) Dims(srcW, srcH int) (int, int) {
	if p.Mode == ModeFixed {
		return p.Width, p.Height
	}
	if srcW <= p.Width && srcH <= p.Height {
		return srcW, srcH
	}

	// ratio = min(maxW/w, maxH/h), compared in integers so the limiting side
	// lands exactly on its bound.
	var w, h int
	if p.Width*srcH <= p.Height*srcW {
		w = p.Width
		h = srcH * p.Width / srcW
	} else {
		h = p.Height
		w = srcW * p.Height / srcH
	}
	return max(w, 1), max(h, 1)
}
