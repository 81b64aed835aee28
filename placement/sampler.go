// Package placement chooses where a foreground object lands on a background
// frame.  Objects are centered horizontally and rest in the lower quarter of
// the frame, with a small uniform jitter around that nominal spot.
package placement

import (
	"image"

	"github.com/swdee/go-synthset/errors"
)

const (
	// xJitterDiv bounds the horizontal jitter to targetX/xJitterDiv
	xJitterDiv = 15
	// yJitterDiv bounds the vertical jitter to targetY/yJitterDiv
	yJitterDiv = 7
)

// Rand is the random source used to jitter placements.  *math/rand/v2.Rand
// satisfies it.
type Rand interface {
	// IntN returns a uniform value in [0, n)
	IntN(n int) int
}

// Sampler picks a top-left offset for a foreground on a background
type Sampler struct {
	rnd Rand
}

// NewSampler returns a Sampler drawing jitter from rnd
func NewSampler(rnd Rand) *Sampler {
	return &Sampler{rnd: rnd}
}

// Target returns the nominal, unjittered top-left offset
func Target(bgW, bgH, fgW, fgH int) image.Point {
	return image.Pt((bgW-fgW)/2, (bgH-fgH)*3/4)
}

// Bounds returns the inclusive range each coordinate is drawn from, as the
// rectangle Min..Max (Max is inclusive, unlike image.Rectangle semantics)
func Bounds(bgW, bgH, fgW, fgH int) (min, max image.Point) {
	t := Target(bgW, bgH, fgW, fgH)
	dx := t.X / xJitterDiv
	dy := t.Y / yJitterDiv

	return image.Pt(t.X-dx, t.Y-dy), image.Pt(t.X+dx, t.Y+dy)
}

// Sample returns the top-left offset for a fgW x fgH foreground on a
// bgW x bgH background.  A foreground larger than the background in either
// dimension is rejected.
func (s *Sampler) Sample(bgW, bgH, fgW, fgH int) (image.Point, error) {

	if fgW > bgW || fgH > bgH {
		return image.Point{}, errors.New(errors.ErrCodeOversizedForeground,
			"foreground %dx%d is larger than the background %dx%d", fgW, fgH, bgW, bgH)
	}

	lo, hi := Bounds(bgW, bgH, fgW, fgH)

	return image.Pt(
		lo.X+s.rnd.IntN(hi.X-lo.X+1),
		lo.Y+s.rnd.IntN(hi.Y-lo.Y+1),
	), nil
}
