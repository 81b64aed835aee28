package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/swdee/go-synthset/errors"
	"github.com/swdee/go-synthset/internal/config"
	"github.com/swdee/go-synthset/internal/dataset"
	"github.com/swdee/go-synthset/scale"
)

// generateCommand creates the generate command for batch composition.
func (c *CLI) generateCommand() *cobra.Command {
	var (
		configFile string
		dataFolder string
		outputDir  string
		perObject  int
		workers    int
		seed       uint64
		labels     bool
		format     string
		preview    bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Compose every prepared object onto random background frames",
		Long: `Compose every prepared object onto random background frames.

Frames are read recursively from <data>/extracted_frames and objects from
<data>/prepared_objects/<category>/.  Each object is placed on up to
--frames-per-object distinct frames and written to <data>/synthetic_images
as {frame}_{category}_{object}.png, with a YOLO label file, classes.txt and
a manifest.jsonl describing the run.

Values from --config are used as defaults, flags given on the command line
override them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {

			cfg := config.Default()

			if configFile != "" {
				var err error
				if cfg, err = config.Load(configFile); err != nil {
					return err
				}
			}

			flags := cmd.Flags()

			if flags.Changed("data") {
				cfg.Paths.DataFolder = dataFolder
			}
			if flags.Changed("output") {
				cfg.Paths.OutputDir = outputDir
			}
			if flags.Changed("frames-per-object") {
				cfg.Generate.FramesPerObject = perObject
			}
			if flags.Changed("workers") {
				cfg.Generate.Workers = workers
			}
			if flags.Changed("seed") {
				cfg.Generate.Seed = seed
			}
			if flags.Changed("labels") {
				cfg.Generate.Labels = labels
			}
			if flags.Changed("label-format") {
				cfg.Generate.LabelFormat = format
			}
			if flags.Changed("preview") {
				cfg.Generate.Preview = preview
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			return c.runGenerate(cmd.Context(), cfg)
		},
	}

	d := config.Default()

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "TOML configuration file")
	cmd.Flags().StringVarP(&dataFolder, "data", "d", d.Paths.DataFolder, "data folder")
	cmd.Flags().StringVarP(&outputDir, "output", "o", d.Paths.OutputDir, "output directory, relative to the data folder")
	cmd.Flags().IntVarP(&perObject, "frames-per-object", "n", d.Generate.FramesPerObject, "distinct frames each object is placed on")
	cmd.Flags().IntVarP(&workers, "workers", "w", d.Generate.Workers, "compositions run in parallel")
	cmd.Flags().Uint64Var(&seed, "seed", d.Generate.Seed, "random seed")
	cmd.Flags().BoolVar(&labels, "labels", d.Generate.Labels, "write YOLO label files")
	cmd.Flags().StringVar(&format, "label-format", d.Generate.LabelFormat, "label format: box, segment")
	cmd.Flags().BoolVar(&preview, "preview", d.Generate.Preview, "write annotated preview images")

	return cmd
}

// runGenerate loads the category table and runs the batch.
func (c *CLI) runGenerate(ctx context.Context, cfg config.Config) error {
	logger := loggerFromContext(ctx)

	table, err := loadTable(cfg.Paths.CategoryTable(), logger)
	if err != nil {
		return err
	}

	prog := newProgress(logger)

	sum, err := dataset.NewGenerator(cfg, table, nil, logger).Run(ctx)

	prog.done(fmt.Sprintf("Composed %d of %d images", sum.Written, sum.Jobs))

	printKeyValue(c.out, "run", sum.RunID)
	printCount(c.out, "frames", sum.Frames)
	printCount(c.out, "objects", sum.Objects)
	printCount(c.out, "written", sum.Written)
	printCount(c.out, "failed", sum.Failed)
	printCount(c.out, "hidden", sum.Hidden)
	printFile(c.out, cfg.Paths.Output())

	if err != nil {
		printError(c.out, "generation stopped")
		return err
	}

	if sum.Failed > 0 {
		printWarning(c.out, "%d compositions failed, see the log", sum.Failed)
	} else {
		printSuccess(c.out, "dataset written")
	}

	return nil
}

// loadTable reads the category table at path.  A missing or unreadable file
// falls back to an empty table where every category resolves to 1.0.
func loadTable(path string, logger *log.Logger) (*scale.Table, error) {

	if path == "" {
		return scale.NewTable(nil, logger), nil
	}

	table, err := scale.LoadCSVFile(path, logger)

	if errors.IsIO(err) {
		logger.Warn("category table unavailable, all objects keep their size", "path", path, "err", err)
		return scale.NewTable(nil, logger), nil
	}

	if err != nil {
		return nil, err
	}

	logger.Debug("loaded category table", "path", path, "categories", table.Len())

	return table, nil
}
