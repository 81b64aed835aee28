package augment

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/swdee/go-synthset/errors"
)

// transparent is the border fill for warps, pixels moved in from outside the
// source are fully transparent
var transparent = color.RGBA{}

// HorizontalFlip mirrors the image left to right
type HorizontalFlip struct{}

func (HorizontalFlip) Name() string { return "horizontal_flip" }
func (HorizontalFlip) Kind() Kind   { return Geometric }

func (HorizontalFlip) Apply(img *gocv.Mat, _ Rand) error {
	out := gocv.NewMat()
	gocv.Flip(*img, &out, 1)
	replace(img, out)
	return nil
}

// VerticalFlip mirrors the image top to bottom
type VerticalFlip struct{}

func (VerticalFlip) Name() string { return "vertical_flip" }
func (VerticalFlip) Kind() Kind   { return Geometric }

func (VerticalFlip) Apply(img *gocv.Mat, _ Rand) error {
	out := gocv.NewMat()
	gocv.Flip(*img, &out, 0)
	replace(img, out)
	return nil
}

// RandomRotate90 rotates the image counter clockwise by 0, 90, 180 or 270
// degrees chosen uniformly.  Rotating by 90 or 270 swaps width and height.
type RandomRotate90 struct{}

func (RandomRotate90) Name() string { return "random_rotate90" }
func (RandomRotate90) Kind() Kind   { return Geometric }

func (RandomRotate90) Apply(img *gocv.Mat, rnd Rand) error {

	var flag gocv.RotateFlag

	switch rnd.IntN(4) {
	case 0:
		return nil
	case 1:
		flag = gocv.Rotate90CounterClockwise
	case 2:
		flag = gocv.Rotate180Clockwise
	default:
		flag = gocv.Rotate90Clockwise
	}

	out := gocv.NewMat()
	gocv.Rotate(*img, &out, flag)
	replace(img, out)
	return nil
}

// Rotate rotates the image about its center by a uniform angle in
// [-Limit, Limit] degrees.  The canvas size is kept, corners moved in from
// outside are transparent.
type Rotate struct {
	// Limit is the maximum rotation angle in degrees
	Limit float64
}

func (Rotate) Name() string { return "rotate" }
func (Rotate) Kind() Kind   { return Geometric }

func (r Rotate) Apply(img *gocv.Mat, rnd Rand) error {
	angle := uniform(rnd, -r.Limit, r.Limit)
	cx, cy := center(*img)
	return warpAffine(img, AffineMatrix(cx, cy, angle, 1, 0, 0))
}

// Affine applies a combined random translation, scale and rotation about the
// image center
type Affine struct {
	// TranslateLimit is the maximum shift as a fraction of width and height
	TranslateLimit float64
	// ScaleLimit is the maximum deviation of the scale from 1
	ScaleLimit float64
	// RotateLimit is the maximum rotation angle in degrees
	RotateLimit float64
}

func (Affine) Name() string { return "affine" }
func (Affine) Kind() Kind   { return Geometric }

func (a Affine) Apply(img *gocv.Mat, rnd Rand) error {

	tx := uniform(rnd, -a.TranslateLimit, a.TranslateLimit) * float64(img.Cols())
	ty := uniform(rnd, -a.TranslateLimit, a.TranslateLimit) * float64(img.Rows())
	s := uniform(rnd, 1-a.ScaleLimit, 1+a.ScaleLimit)
	angle := uniform(rnd, -a.RotateLimit, a.RotateLimit)

	cx, cy := center(*img)

	return warpAffine(img, AffineMatrix(cx, cy, angle, s, tx, ty))
}

// AffineMatrix returns the 3x3 homogeneous matrix that rotates by angle
// degrees (counter clockwise on screen) and scales by scale about (cx, cy),
// then translates by (tx, ty).  The top two rows match the layout of
// OpenCV's getRotationMatrix2D.
func AffineMatrix(cx, cy, angle, scale, tx, ty float64) *mat.Dense {

	rad := angle * math.Pi / 180
	a := scale * math.Cos(rad)
	b := scale * math.Sin(rad)

	toOrigin := mat.NewDense(3, 3, []float64{
		1, 0, -cx,
		0, 1, -cy,
		0, 0, 1,
	})

	rotScale := mat.NewDense(3, 3, []float64{
		a, b, 0,
		-b, a, 0,
		0, 0, 1,
	})

	back := mat.NewDense(3, 3, []float64{
		1, 0, cx + tx,
		0, 1, cy + ty,
		0, 0, 1,
	})

	var m mat.Dense
	m.Product(back, rotScale, toOrigin)

	return &m
}

// toCVAffine copies the top two rows of a homogeneous matrix into a 2x3 CV64F
// Mat suitable for WarpAffine
func toCVAffine(m mat.Matrix) gocv.Mat {

	cv := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)

	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			cv.SetDoubleAt(r, c, m.At(r, c))
		}
	}

	return cv
}

// warpAffine warps img by m keeping the canvas size
func warpAffine(img *gocv.Mat, m mat.Matrix) error {

	cv := toCVAffine(m)
	defer cv.Close()

	out := gocv.NewMat()
	gocv.WarpAffineWithParams(*img, &out, cv, image.Pt(img.Cols(), img.Rows()),
		gocv.InterpolationLinear, gocv.BorderConstant, transparent)

	if out.Empty() {
		out.Close()
		return errors.New(errors.ErrCodeInvalidSize, "affine warp produced an empty image")
	}

	replace(img, out)
	return nil
}

// center returns the pixel center of img
func center(img gocv.Mat) (float64, float64) {
	return float64(img.Cols()-1) / 2, float64(img.Rows()-1) / 2
}
