// Package augment applies a randomized sequence of geometric and photometric
// transforms to a cut-out foreground object.
//
// Foregrounds are handled as 8-bit BGRA Mats.  Geometric transforms warp all
// four channels in a single call, so the alpha mask always receives exactly the
// same interpolation and warp field as the color data and object edges stay
// aligned.  Photometric transforms only ever see the BGR planes; the alpha
// plane is split off before them and merged back untouched.
package augment

import (
	"fmt"

	"github.com/charmbracelet/log"
	"gocv.io/x/gocv"

	"github.com/swdee/go-synthset/errors"
)

// Rand is the random source used by the transforms.  *math/rand/v2.Rand
// satisfies it.
type Rand interface {
	// Float64 returns a uniform value in [0, 1)
	Float64() float64
	// IntN returns a uniform value in [0, n)
	IntN(n int) int
	// NormFloat64 returns a standard normal value
	NormFloat64() float64
}

// Kind defines which channels a transform operates on
type Kind int

const (
	// Geometric transforms move pixels and are applied to BGRA
	Geometric Kind = iota
	// Photometric transforms change color values and are applied to BGR only
	Photometric
)

// String returns the name of the kind
func (k Kind) String() string {
	if k == Geometric {
		return "geometric"
	}
	return "photometric"
}

// Transform is a single augmentation.  Apply replaces the contents of img with
// the transformed image.  Geometric transforms receive a BGRA Mat, photometric
// ones a BGR Mat.
type Transform interface {
	Name() string
	Kind() Kind
	Apply(img *gocv.Mat, rnd Rand) error
}

// Step is a Transform applied with probability P
type Step struct {
	Transform
	// P is the probability from 0 to 1 that the transform is applied
	P float64
}

// Pipeline is an ordered list of augmentation steps.  A Pipeline holds no
// per call state and may be shared by goroutines that each use their own
// random source.
type Pipeline struct {
	steps  []Step
	logger *log.Logger
}

// New returns a Pipeline running the given steps in order
func New(logger *log.Logger, steps ...Step) *Pipeline {

	if logger == nil {
		logger = log.Default()
	}

	return &Pipeline{
		steps:  steps,
		logger: logger,
	}
}

// Default returns the standard augmentation pipeline for foreground objects
func Default(logger *log.Logger) *Pipeline {
	return New(logger,
		Step{HorizontalFlip{}, 0.5},
		Step{VerticalFlip{}, 0.5},
		Step{RandomRotate90{}, 0.5},
		Step{Rotate{Limit: 40}, 0.9},
		Step{Affine{TranslateLimit: 0.1, ScaleLimit: 0.1, RotateLimit: 30}, 0.7},
		Step{BrightnessContrast{BrightnessLimit: 0.1, ContrastLimit: 0.1}, 0.2},
		Step{HueSaturationValue{HueShift: 10, SatShift: 15, ValShift: 10}, 0.2},
		Step{RGBShift{Limit: 10}, 0.1},
		Step{GaussNoise{VarMin: 10, VarMax: 50}, 0.2},
		Step{Blur{Limit: 3}, 0.2},
		Step{GaussianBlur{MinKernel: 3, MaxKernel: 7}, 0.2},
		Step{CLAHE{ClipMin: 1, ClipMax: 4, Tile: 8}, 0.1},
		Step{CoarseDropout{MaxHoles: 8, MinSize: 8}, 0.5},
		Step{ElasticTransform{Alpha: 1, Sigma: 50}, 0.2},
		Step{GridDistortion{Steps: 5, Limit: 0.3}, 0.2},
		Step{OpticalDistortion{DistortLimit: 0.05, ShiftLimit: 0.05}, 0.2},
	)
}

// Identity returns a pipeline with no steps, it only promotes the input to
// BGRA
func Identity() *Pipeline {
	return New(nil)
}

// Steps returns the steps of the pipeline
func (p *Pipeline) Steps() []Step {
	return p.steps
}

// Apply runs the pipeline on src and returns a new BGRA Mat.  src is not
// modified.  A 3 channel src is treated as fully opaque; any channel count
// other than 3 or 4 is rejected.
func (p *Pipeline) Apply(src gocv.Mat, rnd Rand) (gocv.Mat, error) {

	img, err := ToBGRA(src)

	if err != nil {
		return img, err
	}

	for _, step := range p.steps {

		if rnd.Float64() >= step.P {
			continue
		}

		switch step.Kind() {
		case Geometric:
			err = step.Apply(&img, rnd)
		default:
			err = applyColor(&img, step.Transform, rnd)
		}

		if err != nil {
			img.Close()
			return gocv.NewMat(), fmt.Errorf("%s: %w", step.Name(), err)
		}

		if img.Empty() {
			return img, errors.New(errors.ErrCodeInvalidSize, "%s produced an empty image", step.Name())
		}

		p.logger.Debug("applied augmentation", "step", step.Name(),
			"width", img.Cols(), "height", img.Rows())
	}

	return img, nil
}

// ToBGRA returns a new 8-bit BGRA copy of src.  A BGR src gets an alpha plane
// of 255 everywhere.
func ToBGRA(src gocv.Mat) (gocv.Mat, error) {

	switch src.Type() {
	case gocv.MatTypeCV8UC4:
		return src.Clone(), nil

	case gocv.MatTypeCV8UC3:
		dst := gocv.NewMat()
		gocv.CvtColor(src, &dst, gocv.ColorBGRToBGRA)
		return dst, nil
	}

	return gocv.NewMat(), errors.New(errors.ErrCodeInvalidChannels,
		"unsupported number of channels: %d", src.Channels())
}

// applyColor runs a photometric transform on the BGR planes of a BGRA image
// and merges the original alpha plane back
func applyColor(img *gocv.Mat, t Transform, rnd Rand) error {

	planes := gocv.Split(*img)

	defer func() {
		for _, p := range planes {
			p.Close()
		}
	}()

	bgr := gocv.NewMat()
	defer bgr.Close()

	gocv.Merge(planes[:3], &bgr)

	if err := t.Apply(&bgr, rnd); err != nil {
		return err
	}

	color := gocv.Split(bgr)

	defer func() {
		for _, c := range color {
			c.Close()
		}
	}()

	out := gocv.NewMat()
	gocv.Merge([]gocv.Mat{color[0], color[1], color[2], planes[3]}, &out)

	replace(img, out)

	return nil
}

// replace closes the Mat img points to and makes it point to out
func replace(img *gocv.Mat, out gocv.Mat) {
	img.Close()
	*img = out
}

// uniform returns a uniform value in [lo, hi)
func uniform(rnd Rand, lo, hi float64) float64 {
	return lo + rnd.Float64()*(hi-lo)
}

// intRange returns a uniform integer in [lo, hi] inclusive
func intRange(rnd Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rnd.IntN(hi-lo+1)
}

// clampU8 clips v to the 8-bit range and truncates it
func clampU8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
