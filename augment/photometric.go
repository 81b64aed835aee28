package augment

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// BrightnessContrast scales pixel values by 1+contrast and offsets them by
// brightness*255, both drawn uniformly from their limits
type BrightnessContrast struct {
	BrightnessLimit float64
	ContrastLimit   float64
}

func (BrightnessContrast) Name() string { return "brightness_contrast" }
func (BrightnessContrast) Kind() Kind   { return Photometric }

func (b BrightnessContrast) Apply(img *gocv.Mat, rnd Rand) error {

	alpha := 1 + uniform(rnd, -b.ContrastLimit, b.ContrastLimit)
	beta := uniform(rnd, -b.BrightnessLimit, b.BrightnessLimit) * 255

	var lut [256]uint8
	for i := range lut {
		lut[i] = clampU8(float64(i)*alpha + beta)
	}

	return mapBytes(img, func(data []byte) {
		for i, v := range data {
			data[i] = lut[v]
		}
	})
}

// HueSaturationValue shifts hue, saturation and value by integer amounts
// drawn from [-limit, limit].  Hue wraps around the 180 degree OpenCV range,
// saturation and value are clipped.
type HueSaturationValue struct {
	HueShift int
	SatShift int
	ValShift int
}

func (HueSaturationValue) Name() string { return "hue_saturation_value" }
func (HueSaturationValue) Kind() Kind   { return Photometric }

func (hsv HueSaturationValue) Apply(img *gocv.Mat, rnd Rand) error {

	dh := intRange(rnd, -hsv.HueShift, hsv.HueShift)
	ds := intRange(rnd, -hsv.SatShift, hsv.SatShift)
	dv := intRange(rnd, -hsv.ValShift, hsv.ValShift)

	conv := gocv.NewMat()
	defer conv.Close()

	gocv.CvtColor(*img, &conv, gocv.ColorBGRToHSV)

	err := mapBytes(&conv, func(data []byte) {
		for i := 0; i+2 < len(data); i += 3 {
			data[i] = uint8(((int(data[i])+dh)%180 + 180) % 180)
			data[i+1] = clampU8(float64(int(data[i+1]) + ds))
			data[i+2] = clampU8(float64(int(data[i+2]) + dv))
		}
	})

	if err != nil {
		return err
	}

	out := gocv.NewMat()
	gocv.CvtColor(conv, &out, gocv.ColorHSVToBGR)
	replace(img, out)

	return nil
}

// RGBShift adds an independent integer offset in [-Limit, Limit] to each
// color channel
type RGBShift struct {
	Limit int
}

func (RGBShift) Name() string { return "rgb_shift" }
func (RGBShift) Kind() Kind   { return Photometric }

func (s RGBShift) Apply(img *gocv.Mat, rnd Rand) error {

	// drawn in R, G, B order and stored in BGR layout
	var shift [3]int
	shift[2] = intRange(rnd, -s.Limit, s.Limit)
	shift[1] = intRange(rnd, -s.Limit, s.Limit)
	shift[0] = intRange(rnd, -s.Limit, s.Limit)

	return mapBytes(img, func(data []byte) {
		for i, v := range data {
			data[i] = clampU8(float64(int(v) + shift[i%3]))
		}
	})
}

// GaussNoise adds zero mean Gaussian noise with a variance drawn uniformly
// from [VarMin, VarMax] independently to every channel value
type GaussNoise struct {
	VarMin float64
	VarMax float64
}

func (GaussNoise) Name() string { return "gauss_noise" }
func (GaussNoise) Kind() Kind   { return Photometric }

func (g GaussNoise) Apply(img *gocv.Mat, rnd Rand) error {

	sigma := math.Sqrt(uniform(rnd, g.VarMin, g.VarMax))

	return mapBytes(img, func(data []byte) {
		for i, v := range data {
			data[i] = clampU8(float64(v) + rnd.NormFloat64()*sigma)
		}
	})
}

// Blur applies a box filter with an odd kernel from 3 up to Limit
type Blur struct {
	Limit int
}

func (Blur) Name() string { return "blur" }
func (Blur) Kind() Kind   { return Photometric }

func (b Blur) Apply(img *gocv.Mat, rnd Rand) error {

	k := oddKernel(rnd, 3, b.Limit)

	out := gocv.NewMat()
	gocv.Blur(*img, &out, image.Pt(k, k))
	replace(img, out)

	return nil
}

// GaussianBlur applies a Gaussian filter with an odd kernel from MinKernel to
// MaxKernel, sigma is derived from the kernel size
type GaussianBlur struct {
	MinKernel int
	MaxKernel int
}

func (GaussianBlur) Name() string { return "gaussian_blur" }
func (GaussianBlur) Kind() Kind   { return Photometric }

func (g GaussianBlur) Apply(img *gocv.Mat, rnd Rand) error {

	k := oddKernel(rnd, g.MinKernel, g.MaxKernel)

	out := gocv.NewMat()
	gocv.GaussianBlur(*img, &out, image.Pt(k, k), 0, 0, gocv.BorderDefault)
	replace(img, out)

	return nil
}

// CLAHE equalizes the lightness channel in Lab space with a clip limit drawn
// from [ClipMin, ClipMax] over a Tile x Tile grid
type CLAHE struct {
	ClipMin float64
	ClipMax float64
	Tile    int
}

func (CLAHE) Name() string { return "clahe" }
func (CLAHE) Kind() Kind   { return Photometric }

func (c CLAHE) Apply(img *gocv.Mat, rnd Rand) error {

	clip := uniform(rnd, c.ClipMin, c.ClipMax)

	lab := gocv.NewMat()
	defer lab.Close()

	gocv.CvtColor(*img, &lab, gocv.ColorBGRToLab)

	planes := gocv.Split(lab)
	defer func() {
		for _, p := range planes {
			p.Close()
		}
	}()

	clahe := gocv.NewCLAHEWithParams(clip, image.Pt(c.Tile, c.Tile))
	defer clahe.Close()

	light := gocv.NewMat()
	defer light.Close()

	clahe.Apply(planes[0], &light)

	merged := gocv.NewMat()
	defer merged.Close()

	gocv.Merge([]gocv.Mat{light, planes[1], planes[2]}, &merged)

	out := gocv.NewMat()
	gocv.CvtColor(merged, &out, gocv.ColorLabToBGR)
	replace(img, out)

	return nil
}

// CoarseDropout blacks out between 1 and MaxHoles square holes.  Hole sides
// range from MinSize to an eighth of the shorter image side.  Only color is
// dropped, the object mask keeps its shape.
type CoarseDropout struct {
	MaxHoles int
	MinSize  int
}

func (CoarseDropout) Name() string { return "coarse_dropout" }
func (CoarseDropout) Kind() Kind   { return Photometric }

func (c CoarseDropout) Apply(img *gocv.Mat, rnd Rand) error {

	w, h := img.Cols(), img.Rows()
	ch := img.Channels()

	holes := intRange(rnd, 1, max(c.MaxHoles, 1))
	maxSide := max(c.MinSize, min(w, h)/8)

	return mapBytes(img, func(data []byte) {
		for n := 0; n < holes; n++ {

			side := intRange(rnd, c.MinSize, maxSide)
			sw, sh := min(side, w), min(side, h)

			x0 := rnd.IntN(w - sw + 1)
			y0 := rnd.IntN(h - sh + 1)

			for y := y0; y < y0+sh; y++ {
				row := data[(y*w+x0)*ch : (y*w+x0+sw)*ch]
				for i := range row {
					row[i] = 0
				}
			}
		}
	})
}

// mapBytes runs fn over the raw bytes of a continuous 8-bit Mat in place
func mapBytes(img *gocv.Mat, fn func(data []byte)) error {

	if !img.IsContinuous() {
		cl := img.Clone()
		replace(img, cl)
	}

	data, err := img.DataPtrUint8()

	if err != nil {
		return err
	}

	fn(data)

	return nil
}

// oddKernel returns a random odd kernel size in [lo, hi]
func oddKernel(rnd Rand, lo, hi int) int {

	lo = max(lo|1, 3)
	hi = max(hi, lo)

	n := (hi-lo)/2 + 1

	return lo + 2*rnd.IntN(n)
}
