package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	synthset "github.com/swdee/go-synthset"
	"github.com/swdee/go-synthset/annotation"
	"github.com/swdee/go-synthset/augment"
	"github.com/swdee/go-synthset/errors"
	"github.com/swdee/go-synthset/imageio"
	"github.com/swdee/go-synthset/render"
)

// previewTint is the weight of the class color over the object in previews
const previewTint = 0.35

type composeOptions struct {
	output     string
	categories string
	seed       uint64
	noAugment  bool
	label      string
	format     string
	preview    string
}

// composeCommand creates the compose command for a single composition.
func (c *CLI) composeCommand() *cobra.Command {
	var opts composeOptions

	cmd := &cobra.Command{
		Use:   "compose <background> <object> <category>",
		Short: "Compose one object onto one background",
		Long: `Compose one object onto one background.

The object is augmented, shrunk to fit the background, rescaled by the factor
of its category and placed in the lower part of the frame.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCompose(cmd.Context(), args[0], args[1], args[2], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "composite.png", "output image")
	cmd.Flags().StringVar(&opts.categories, "categories", "", "category scale table (CSV)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "random seed")
	cmd.Flags().BoolVar(&opts.noAugment, "no-augment", false, "disable augmentation")
	cmd.Flags().StringVar(&opts.label, "label", "", "write a YOLO label file (default: none)")
	cmd.Flags().StringVar(&opts.format, "label-format", string(annotation.FormatBox), "label format: box, segment")
	cmd.Flags().StringVar(&opts.preview, "preview", "", "write an annotated preview image")

	return cmd
}

// runCompose reads the inputs, composes them and writes the outputs.
func (c *CLI) runCompose(ctx context.Context, bgPath, fgPath, category string, opts composeOptions) error {
	logger := loggerFromContext(ctx)

	format, err := annotation.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	table, err := loadTable(opts.categories, logger)
	if err != nil {
		return err
	}

	bg, err := imageio.ReadBackground(bgPath)
	if err != nil {
		return err
	}
	defer bg.Close()

	fg, err := imageio.ReadForeground(fgPath)
	if err != nil {
		return err
	}
	defer fg.Close()

	o := synthset.Options{Seed: opts.seed, Logger: logger}
	if opts.noAugment {
		o.Pipeline = augment.Identity()
	}

	res, err := synthset.NewComposer(table, o).Compose(bg, fg, category)
	if err != nil {
		return err
	}
	defer res.Close()

	if err := imageio.Write(opts.output, res.Composite); err != nil {
		return err
	}

	printSuccess(c.out, "composed %s at (%d,%d) size %dx%d scale %g", res.Category,
		res.Placement.X, res.Placement.Y, res.Size.X, res.Size.Y, res.Scale)
	printFile(c.out, opts.output)

	if !res.Visible {
		printWarning(c.out, "object is not visible on the background")
	}

	if opts.label != "" {
		lines := res.Label.Lines(format, res.Composite.Cols(), res.Composite.Rows())
		data := strings.Join(lines, "\n")
		if len(lines) > 0 {
			data += "\n"
		}

		if err := writeFile(opts.label, data); err != nil {
			return err
		}
		printFile(c.out, opts.label)
	}

	if opts.preview != "" && res.Visible {
		pv := res.Composite.Clone()
		defer pv.Close()

		if err := render.Tint(&pv, res.Label.Outline, res.Label.Class, previewTint); err != nil {
			return err
		}

		render.Captions(&pv, []render.Caption{{
			Box:     res.Label.Box,
			Text:    res.Category,
			Outline: res.Label.Outline,
		}}, render.DefaultFont(), 2)

		if err := imageio.Write(opts.preview, pv); err != nil {
			return err
		}
		printFile(c.out, filepath.Clean(opts.preview))
	}

	return nil
}

// writeFile writes data to path, failures carry ErrCodeWriteFailed.
func writeFile(path, data string) error {
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, err, "error writing %s", path)
	}
	return nil
}
