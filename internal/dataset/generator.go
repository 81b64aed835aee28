package dataset

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	synthset "github.com/swdee/go-synthset"
	"github.com/swdee/go-synthset/annotation"
	"github.com/swdee/go-synthset/augment"
	"github.com/swdee/go-synthset/errors"
	"github.com/swdee/go-synthset/imageio"
	"github.com/swdee/go-synthset/internal/config"
	"github.com/swdee/go-synthset/render"
	"github.com/swdee/go-synthset/scale"
)

const (
	// ClassesFile lists label classes one per line in the output directory
	ClassesFile = "classes.txt"
	// PreviewDir is the sub directory of the output holding annotated copies
	PreviewDir = "preview"

	// previewTint is the weight of the class color over the object in previews
	previewTint = 0.35
)

// Summary counts the outcome of a run
type Summary struct {
	RunID   string
	Frames  int
	Objects int
	Jobs    int
	Written int
	Failed  int
	// Hidden counts composites where the object ended up fully off canvas
	Hidden int
}

// Generator composes every prepared object onto a random selection of
// frames and writes the composites, labels and manifest to the output
// directory
type Generator struct {
	cfg      config.Config
	table    *scale.Table
	pipeline *augment.Pipeline
	logger   *log.Logger
}

// NewGenerator returns a Generator for cfg.  pipeline may be nil to use the
// default augmentation.
func NewGenerator(cfg config.Config, table *scale.Table, pipeline *augment.Pipeline, logger *log.Logger) *Generator {

	if logger == nil {
		logger = log.Default()
	}

	return &Generator{
		cfg:      cfg,
		table:    table,
		pipeline: pipeline,
		logger:   logger,
	}
}

// Run executes the whole batch.  A failing job is logged, recorded in the
// manifest and skipped.  Cancelling ctx stops new jobs from starting, jobs
// in flight are finished and ctx.Err() is returned with the partial summary.
func (g *Generator) Run(ctx context.Context) (Summary, error) {

	var sum Summary

	paths := g.cfg.Paths
	gen := g.cfg.Generate

	frames, err := ScanFrames(paths.Frames())

	if err != nil {
		return sum, err
	}

	objects, categories, err := ScanObjects(paths.Objects())

	if err != nil {
		return sum, err
	}

	sum.Frames = len(frames)
	sum.Objects = len(objects)

	if len(frames) == 0 || len(objects) == 0 {
		g.logger.Warn("nothing to compose", "frames", len(frames), "objects", len(objects))
		return sum, nil
	}

	outDir := paths.Output()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return sum, errors.Wrap(errors.ErrCodeWriteFailed, err, "error creating output directory %s", outDir)
	}

	if gen.Preview {
		if err := os.MkdirAll(filepath.Join(outDir, PreviewDir), 0o755); err != nil {
			return sum, errors.Wrap(errors.ErrCodeWriteFailed, err, "error creating preview directory")
		}
	}

	normalized := make([]string, len(categories))
	for i, c := range categories {
		normalized[i] = scale.Normalize(c)
	}

	classes := annotation.SortedClasses(normalized)

	if gen.Labels {
		if err := annotation.WriteClasses(filepath.Join(outDir, ClassesFile), classes); err != nil {
			return sum, err
		}
	}

	// format is validated with the config
	format, _ := annotation.ParseFormat(gen.LabelFormat)

	jobs := Plan(frames, objects, gen.FramesPerObject, rand.New(rand.NewPCG(gen.Seed, gen.Seed)))
	sum.Jobs = len(jobs)

	manifest, err := CreateManifest(filepath.Join(outDir, ManifestFile))

	if err != nil {
		return sum, err
	}

	defer manifest.Close()

	sum.RunID = manifest.RunID()

	pool, err := synthset.NewPool(gen.Workers, g.table, synthset.Options{
		Seed:     gen.Seed,
		Pipeline: g.pipeline,
		Classes:  classes,
		Logger:   g.logger,
	})

	if err != nil {
		return sum, err
	}

	defer pool.Close()

	g.logger.Info("starting run", "run_id", sum.RunID, "frames", sum.Frames,
		"objects", sum.Objects, "jobs", sum.Jobs, "workers", pool.Size())

	w := &worker{
		outDir:  outDir,
		labels:  gen.Labels,
		format:  format,
		preview: gen.Preview,
		logger:  g.logger,
	}

	var (
		wg      sync.WaitGroup
		written atomic.Int64
		failed  atomic.Int64
		hidden  atomic.Int64
	)

	for _, job := range jobs {

		if ctx.Err() != nil {
			break
		}

		// pool.Get() blocks until a composer is free
		c := pool.Get()
		wg.Add(1)

		go func(job Job, c *synthset.Composer) {
			defer wg.Done()
			defer pool.Return(c)

			// seed per job so output does not depend on scheduling
			c.Reseed(gen.Seed + uint64(job.Seq))

			entry, err := w.process(c, job)

			if err != nil {
				failed.Add(1)
				entry.Error = err.Error()
				g.logger.Error("error combining images", "frame", job.Frame.Path,
					"object", job.Object.Path, "err", err)
			} else {
				written.Add(1)
				if !entry.Visible {
					hidden.Add(1)
				}
				g.logger.Debug("saved synthetic image", "path", entry.Output)
			}

			if err := manifest.Add(entry); err != nil {
				g.logger.Error("error writing manifest", "err", err)
			}
		}(job, c)
	}

	wg.Wait()

	sum.Written = int(written.Load())
	sum.Failed = int(failed.Load())
	sum.Hidden = int(hidden.Load())

	return sum, ctx.Err()
}

// worker holds the per run settings needed to process a job
type worker struct {
	outDir  string
	labels  bool
	format  annotation.Format
	preview bool
	logger  *log.Logger
}

// process composes a single job and writes its outputs
func (w *worker) process(c *synthset.Composer, job Job) (Entry, error) {

	entry := Entry{
		Seq:      job.Seq,
		Frame:    job.Frame.Path,
		Object:   job.Object.Path,
		Category: job.Object.Category,
	}

	bg, err := imageio.ReadBackground(job.Frame.Path)

	if err != nil {
		return entry, err
	}

	defer bg.Close()

	fg, err := imageio.ReadForeground(job.Object.Path)

	if err != nil {
		return entry, err
	}

	defer fg.Close()

	res, err := c.Compose(bg, fg, job.Object.Category)

	if err != nil {
		return entry, err
	}

	defer res.Close()

	entry.X, entry.Y = res.Placement.X, res.Placement.Y
	entry.Width, entry.Height = res.Size.X, res.Size.Y
	entry.Scale = res.Scale
	entry.Visible = res.Visible

	if res.Visible {
		b := res.Label.Box
		entry.Box = []int{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
	}

	out := filepath.Join(w.outDir, job.Name)

	if err := imageio.Write(out, res.Composite); err != nil {
		return entry, err
	}

	entry.Output = out

	if w.labels {

		lblFile := strings.TrimSuffix(out, filepath.Ext(out)) + ".txt"
		lines := res.Label.Lines(w.format, res.Composite.Cols(), res.Composite.Rows())

		if err := writeLines(lblFile, lines); err != nil {
			return entry, err
		}

		entry.Label = lblFile
	}

	if w.preview && res.Visible {

		pv := res.Composite.Clone()
		defer pv.Close()

		if err := render.Tint(&pv, res.Label.Outline, res.Label.Class, previewTint); err != nil {
			return entry, err
		}

		render.Captions(&pv, []render.Caption{{
			Box:     res.Label.Box,
			Text:    res.Category,
			Class:   res.Label.Class,
			Outline: res.Label.Outline,
		}}, render.DefaultFont(), 2)

		if err := imageio.Write(filepath.Join(w.outDir, PreviewDir, job.Name), pv); err != nil {
			return entry, err
		}
	}

	return entry, nil
}

// writeLines writes lines to file separated by newlines.  An empty label
// file marks a frame without visible objects.
func writeLines(file string, lines []string) error {

	data := strings.Join(lines, "\n")

	if len(lines) > 0 {
		data += "\n"
	}

	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, err, "error writing label %s", file)
	}

	return nil
}
