package preprocess

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/swdee/go-synthset/errors"
)

// FitResizer defines the struct used to shrink a foreground object so it fits
// inside a background frame
type FitResizer struct {
	// srcWidth is the width of the foreground image
	srcWidth int
	// srcHeight is the height of the foreground image
	srcHeight int
	// bgWidth is the width of the background to fit inside
	bgWidth int
	// bgHeight is the height of the background to fit inside
	bgHeight int
	// scale is the factor applied to both dimensions, never above 1.0
	scale float64
	// resize dimensions
	resizeW int
	resizeH int
}

// NewFitResizer returns a resizer that scales a srcWidth x srcHeight image down
// to fit a bgWidth x bgHeight frame while maintaining aspect.  Images that
// already fit are left at their size.
func NewFitResizer(srcWidth, srcHeight, bgWidth, bgHeight int) *FitResizer {
	r := &FitResizer{
		srcWidth:  srcWidth,
		srcHeight: srcHeight,
		bgWidth:   bgWidth,
		bgHeight:  bgHeight,
	}

	// precalculate scaling dimensions
	r.preCalc()

	return r
}

// preCalc the scale factor and output dimensions
func (r *FitResizer) preCalc() {

	r.scale = 1.0

	if r.srcWidth <= 0 || r.srcHeight <= 0 {
		return
	}

	scaleW := float64(r.bgWidth) / float64(r.srcWidth)
	scaleH := float64(r.bgHeight) / float64(r.srcHeight)

	r.scale = math.Min(math.Min(scaleW, scaleH), 1.0)

	// floor, matching an int() cast of the scaled size
	r.resizeW = int(float64(r.srcWidth) * r.scale)
	r.resizeH = int(float64(r.srcHeight) * r.scale)
}

// Fit resizes src into dest using area interpolation.  When no shrinking is
// needed src is copied unchanged.
func (r *FitResizer) Fit(src gocv.Mat, dest *gocv.Mat) error {

	if r.resizeW < 1 || r.resizeH < 1 {
		return errors.New(errors.ErrCodeInvalidSize,
			"foreground %dx%d shrinks to %dx%d to fit %dx%d background",
			r.srcWidth, r.srcHeight, r.resizeW, r.resizeH, r.bgWidth, r.bgHeight)
	}

	if r.resizeW == r.srcWidth && r.resizeH == r.srcHeight {
		src.CopyTo(dest)
		return nil
	}

	gocv.Resize(src, dest, image.Pt(r.resizeW, r.resizeH), 0, 0, gocv.InterpolationArea)

	return nil
}

// ScaleFactor returns the scale factor used by Fit
func (r *FitResizer) ScaleFactor() float64 {
	return r.scale
}

// Width returns the width of the fitted image
func (r *FitResizer) Width() int {
	return r.resizeW
}

// Height returns the height of the fitted image
func (r *FitResizer) Height() int {
	return r.resizeH
}

// SrcWidth returns the width of the source image
func (r *FitResizer) SrcWidth() int {
	return r.srcWidth
}

// SrcHeight returns the height of the source image
func (r *FitResizer) SrcHeight() int {
	return r.srcHeight
}

// Fit returns a new Mat holding fg shrunk to fit inside a bgWidth x bgHeight
// frame.  It never enlarges.
func Fit(fg gocv.Mat, bgWidth, bgHeight int) (gocv.Mat, error) {

	r := NewFitResizer(fg.Cols(), fg.Rows(), bgWidth, bgHeight)
	dest := gocv.NewMat()

	if err := r.Fit(fg, &dest); err != nil {
		dest.Close()
		return gocv.NewMat(), err
	}

	return dest, nil
}

// RescaleSize returns the dimensions of a width x height image multiplied by
// factor, rounded half to even as OpenCV does for fx/fy resizing
func RescaleSize(width, height int, factor float64) (int, int) {
	return int(math.RoundToEven(float64(width) * factor)),
		int(math.RoundToEven(float64(height) * factor))
}

// Rescale returns a new Mat holding fg resized by the given multiplicative
// factor.  The factor may enlarge the image past any earlier fit; callers
// validate the final size against the background separately.
func Rescale(fg gocv.Mat, factor float64) (gocv.Mat, error) {

	if !(factor > 0) {
		return gocv.NewMat(), errors.New(errors.ErrCodeInvalidSize,
			"rescale factor %v must be positive", factor)
	}

	w, h := RescaleSize(fg.Cols(), fg.Rows(), factor)

	if w < 1 || h < 1 {
		return gocv.NewMat(), errors.New(errors.ErrCodeInvalidSize,
			"foreground %dx%d rescaled by %v is empty", fg.Cols(), fg.Rows(), factor)
	}

	dest := gocv.NewMat()

	if w == fg.Cols() && h == fg.Rows() {
		fg.CopyTo(&dest)
		return dest, nil
	}

	gocv.Resize(fg, &dest, image.Pt(w, h), 0, 0, gocv.InterpolationArea)

	return dest, nil
}
