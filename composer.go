package synthset

import (
	"fmt"
	"image"
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"gocv.io/x/gocv"

	"github.com/swdee/go-synthset/annotation"
	"github.com/swdee/go-synthset/augment"
	"github.com/swdee/go-synthset/placement"
	"github.com/swdee/go-synthset/preprocess"
	"github.com/swdee/go-synthset/render"
	"github.com/swdee/go-synthset/scale"
)

// Rand is the random source shared by the augmentation and placement stages.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
	NormFloat64() float64
}

// Options configures a Composer.  Zero values select the defaults.
type Options struct {
	// Seed seeds the random source when Rand is nil
	Seed uint64
	// Rand overrides the random source
	Rand Rand
	// Pipeline is the augmentation pipeline, defaults to augment.Default
	Pipeline *augment.Pipeline
	// Classes maps categories to label class indexes, when nil every label
	// uses class 0
	Classes *annotation.Classes
	// Logger defaults to log.Default
	Logger *log.Logger
}

// Composer composites foreground objects onto backgrounds.  A Composer is
// not safe for concurrent use since it advances its random source on every
// call.
type Composer struct {
	table    *scale.Table
	pipeline *augment.Pipeline
	classes  *annotation.Classes
	rnd      Rand
	src      *rand.PCG
	sampler  *placement.Sampler
	logger   *log.Logger
}

// Result is the outcome of a single composition
type Result struct {
	// Composite is the blended image with the background's size and type
	Composite gocv.Mat
	// Category is the normalized category of the object
	Category string
	// Placement is the top left corner of the object on the background
	Placement image.Point
	// Region is the area of the background that was blended
	Region image.Rectangle
	// Scale is the category factor applied by the rescale stage
	Scale float64
	// Size is the final width and height of the object
	Size image.Point
	// Label is the visible part of the object
	Label annotation.Label
	// Visible is false when no pixel of the object landed on the background
	Visible bool
}

// Close releases the composite image
func (r *Result) Close() error {
	return r.Composite.Close()
}

// NewComposer returns a Composer resolving category factors from table
func NewComposer(table *scale.Table, opts Options) *Composer {

	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	if table == nil {
		table = scale.NewTable(nil, opts.Logger)
	}

	if opts.Pipeline == nil {
		opts.Pipeline = augment.Default(opts.Logger)
	}

	var src *rand.PCG

	if opts.Rand == nil {
		src = rand.NewPCG(opts.Seed, opts.Seed)
		opts.Rand = rand.New(src)
	}

	return &Composer{
		table:    table,
		pipeline: opts.Pipeline,
		classes:  opts.Classes,
		rnd:      opts.Rand,
		src:      src,
		sampler:  placement.NewSampler(opts.Rand),
		logger:   opts.Logger,
	}
}

// Reseed restarts the random source of the Composer from seed, after which
// it produces the same compositions as a new Composer with that seed.  It
// reports false and does nothing when the Composer was given an external
// Rand.
func (c *Composer) Reseed(seed uint64) bool {

	if c.src == nil {
		return false
	}

	c.src.Seed(seed, seed)

	return true
}

// Compose augments fg, sizes it for bg and the category, places it and
// blends it onto a copy of bg.  bg and fg are not modified.  A failure in any
// stage aborts the composition and is returned wrapped with the stage name.
func (c *Composer) Compose(bg, fg gocv.Mat, category string) (*Result, error) {

	bgW, bgH := bg.Cols(), bg.Rows()

	aug, err := c.pipeline.Apply(fg, c.rnd)

	if err != nil {
		return nil, fmt.Errorf("augment: %w", err)
	}

	defer aug.Close()

	fit, err := preprocess.Fit(aug, bgW, bgH)

	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	defer fit.Close()

	factor := c.table.Resolve(category)

	obj, err := preprocess.Rescale(fit, factor)

	if err != nil {
		return nil, fmt.Errorf("rescale: %w", err)
	}

	defer obj.Close()

	at, err := c.sampler.Sample(bgW, bgH, obj.Cols(), obj.Rows())

	if err != nil {
		return nil, fmt.Errorf("placement: %w", err)
	}

	res := &Result{
		Composite: bg.Clone(),
		Category:  scale.Normalize(category),
		Placement: at,
		Scale:     factor,
		Size:      image.Pt(obj.Cols(), obj.Rows()),
	}

	res.Region, err = render.AlphaComposite(&res.Composite, obj, at, c.logger)

	if err != nil {
		res.Close()
		return nil, fmt.Errorf("composite: %w", err)
	}

	res.Label, res.Visible, err = annotation.Visible(obj, at, bgW, bgH)

	if err != nil {
		res.Close()
		return nil, fmt.Errorf("label: %w", err)
	}

	res.Label.Name = res.Category

	if c.classes != nil {
		if idx, ok := c.classes.Index(res.Category); ok {
			res.Label.Class = idx
		} else {
			c.logger.Warn("category has no label class, using 0", "category", res.Category)
		}
	}

	c.logger.Debug("composed object", "category", res.Category, "x", at.X, "y", at.Y,
		"width", res.Size.X, "height", res.Size.Y, "scale", factor)

	return res, nil
}
