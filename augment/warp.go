package augment

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// ElasticTransform displaces every pixel by a random field smoothed with a
// Gaussian of Sigma and scaled by Alpha
type ElasticTransform struct {
	Alpha float64
	Sigma float64
}

func (ElasticTransform) Name() string { return "elastic_transform" }
func (ElasticTransform) Kind() Kind   { return Geometric }

func (e ElasticTransform) Apply(img *gocv.Mat, rnd Rand) error {

	w, h := img.Cols(), img.Rows()

	dx, err := e.field(w, h, rnd)
	if err != nil {
		return err
	}
	defer dx.Close()

	dy, err := e.field(w, h, rnd)
	if err != nil {
		return err
	}
	defer dy.Close()

	dxv, err := dx.DataPtrFloat32()
	if err != nil {
		return err
	}

	dyv, err := dy.DataPtrFloat32()
	if err != nil {
		return err
	}

	return remap(img, func(mx, my []float32) {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				mx[i] = float32(x) + dxv[i]
				my[i] = float32(y) + dyv[i]
			}
		}
	})
}

// field returns a smoothed displacement field of uniform noise in [-1, 1)
func (e ElasticTransform) field(w, h int, rnd Rand) (gocv.Mat, error) {

	noise := gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F)
	defer noise.Close()

	vals, err := noise.DataPtrFloat32()
	if err != nil {
		return gocv.NewMat(), err
	}

	for i := range vals {
		vals[i] = float32(rnd.Float64()*2 - 1)
	}

	smooth := gocv.NewMat()
	gocv.GaussianBlur(noise, &smooth, image.Pt(0, 0), e.Sigma, e.Sigma, gocv.BorderDefault)

	if e.Alpha != 1 {
		smooth.MultiplyFloat(float32(e.Alpha))
	}

	return smooth, nil
}

// GridDistortion splits the image into a Steps x Steps grid and stretches or
// squeezes each cell by up to Limit of its size
type GridDistortion struct {
	Steps int
	Limit float64
}

func (GridDistortion) Name() string { return "grid_distortion" }
func (GridDistortion) Kind() Kind   { return Geometric }

func (g GridDistortion) Apply(img *gocv.Mat, rnd Rand) error {

	w, h := img.Cols(), img.Rows()

	xs := g.axis(w, rnd)
	ys := g.axis(h, rnd)

	return remap(img, func(mx, my []float32) {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				mx[i] = xs[x]
				my[i] = ys[y]
			}
		}
	})
}

// axis returns the source coordinate for every position along one axis of
// length n.  The axis is cut into Steps equal cells whose source lengths are
// scaled by 1+u, u drawn from [-Limit, Limit], then renormalized so the first
// and last positions still map to the edges.
func (g GridDistortion) axis(n int, rnd Rand) []float32 {

	out := make([]float32, n)

	if n < 2 {
		return out
	}

	cells := min(max(g.Steps, 1), n-1)
	size := float64(n-1) / float64(cells)

	src := make([]float64, cells+1)
	for j := 1; j <= cells; j++ {
		src[j] = src[j-1] + size*(1+uniform(rnd, -g.Limit, g.Limit))
	}

	norm := float64(n-1) / src[cells]
	for j := range src {
		src[j] *= norm
	}
	src[cells] = float64(n - 1)

	for x := 0; x < n; x++ {
		j := min(int(float64(x)/size), cells-1)
		t := (float64(x) - float64(j)*size) / size
		out[x] = float32(src[j] + t*(src[j+1]-src[j]))
	}

	return out
}

// OpticalDistortion applies a random barrel or pincushion distortion around a
// randomly shifted center
type OpticalDistortion struct {
	// DistortLimit bounds the radial distortion coefficient
	DistortLimit float64
	// ShiftLimit bounds the center shift as a fraction of width and height
	ShiftLimit float64
}

func (OpticalDistortion) Name() string { return "optical_distortion" }
func (OpticalDistortion) Kind() Kind   { return Geometric }

func (o OpticalDistortion) Apply(img *gocv.Mat, rnd Rand) error {

	w, h := img.Cols(), img.Rows()

	k := uniform(rnd, -o.DistortLimit, o.DistortLimit)
	cx := float64(w)/2 + uniform(rnd, -o.ShiftLimit, o.ShiftLimit)*float64(w)
	cy := float64(h)/2 + uniform(rnd, -o.ShiftLimit, o.ShiftLimit)*float64(h)
	f := math.Max(float64(w), float64(h))

	return remap(img, func(mx, my []float32) {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				nx := (float64(x) - cx) / f
				ny := (float64(y) - cy) / f
				d := 1 + k*(nx*nx+ny*ny)

				i := y*w + x
				mx[i] = float32(cx + nx*d*f)
				my[i] = float32(cy + ny*d*f)
			}
		}
	})
}

// remap builds a pair of CV32F coordinate maps with fill and resamples img
// through them
func remap(img *gocv.Mat, fill func(mx, my []float32)) error {

	w, h := img.Cols(), img.Rows()

	mapX := gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F)
	defer mapX.Close()

	mapY := gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F)
	defer mapY.Close()

	mx, err := mapX.DataPtrFloat32()
	if err != nil {
		return err
	}

	my, err := mapY.DataPtrFloat32()
	if err != nil {
		return err
	}

	fill(mx, my)

	out := gocv.NewMat()
	gocv.Remap(*img, &out, &mapX, &mapY, gocv.InterpolationLinear,
		gocv.BorderConstant, transparent)

	replace(img, out)
	return nil
}
