// Package config loads the synthset TOML configuration file.
//
// Every path in the [paths] table except data_folder is resolved relative to
// data_folder unless it is absolute.
//
//	[paths]
//	data_folder = "/data/street"
//	frames_dir  = "extracted_frames"
//	objects_dir = "prepared_objects"
//	output_dir  = "synthetic_images"
//	categories  = "categories.csv"
//
//	[generate]
//	frames_per_object = 10
//	workers           = 4
//	seed              = 1
//	labels            = true
//	label_format      = "box"
//	preview           = false
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/swdee/go-synthset/annotation"
	"github.com/swdee/go-synthset/errors"
)

const (
	DefaultFramesDir       = "extracted_frames"
	DefaultObjectsDir      = "prepared_objects"
	DefaultOutputDir       = "synthetic_images"
	DefaultCategories      = "categories.csv"
	DefaultFramesPerObject = 10
)

// Config is the full configuration of a dataset run
type Config struct {
	Paths    Paths    `toml:"paths"`
	Generate Generate `toml:"generate"`
}

// Paths locates the inputs and outputs of a run
type Paths struct {
	// DataFolder is the root of the dataset
	DataFolder string `toml:"data_folder"`
	// FramesDir holds background frames, searched recursively
	FramesDir string `toml:"frames_dir"`
	// ObjectsDir holds one sub directory of cut-out objects per category
	ObjectsDir string `toml:"objects_dir"`
	// OutputDir receives composites, labels and the manifest
	OutputDir string `toml:"output_dir"`
	// Categories is the CSV table of per-category scale factors
	Categories string `toml:"categories"`
}

// Generate controls how composites are produced
type Generate struct {
	// FramesPerObject is the number of distinct frames each object is placed on
	FramesPerObject int `toml:"frames_per_object"`
	// Workers is the number of compositions run in parallel
	Workers int `toml:"workers"`
	// Seed makes a run reproducible
	Seed uint64 `toml:"seed"`
	// Labels enables writing a YOLO label file next to each composite
	Labels bool `toml:"labels"`
	// LabelFormat is "box" or "segment"
	LabelFormat string `toml:"label_format"`
	// Preview additionally writes a copy of each composite with its label drawn
	Preview bool `toml:"preview"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Paths: Paths{
			DataFolder: ".",
			FramesDir:  DefaultFramesDir,
			ObjectsDir: DefaultObjectsDir,
			OutputDir:  DefaultOutputDir,
			Categories: DefaultCategories,
		},
		Generate: Generate{
			FramesPerObject: DefaultFramesPerObject,
			Workers:         runtime.NumCPU(),
			Seed:            1,
			Labels:          true,
			LabelFormat:     string(annotation.FormatBox),
		},
	}
}

// Load reads the TOML file at path over the defaults and validates the
// result
func Load(path string) (Config, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeUnreadableInput, err, "error reading config %s", path)
	}

	return Parse(data)
}

// Parse decodes TOML data over the defaults and validates the result
func Parse(data []byte) (Config, error) {

	cfg := Default()

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "error parsing config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration for values a run cannot use
func (c Config) Validate() error {

	if c.Paths.DataFolder == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "paths.data_folder must be set")
	}

	if c.Generate.FramesPerObject < 1 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"generate.frames_per_object must be at least 1, got %d", c.Generate.FramesPerObject)
	}

	if c.Generate.Workers < 1 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"generate.workers must be at least 1, got %d", c.Generate.Workers)
	}

	if _, err := annotation.ParseFormat(c.Generate.LabelFormat); err != nil {
		return err
	}

	return nil
}

// Resolve joins p onto the data folder unless p is absolute
func (p Paths) Resolve(rel string) string {

	if filepath.IsAbs(rel) {
		return rel
	}

	return filepath.Join(p.DataFolder, rel)
}

// Frames returns the resolved frames directory
func (p Paths) Frames() string { return p.Resolve(p.FramesDir) }

// Objects returns the resolved objects directory
func (p Paths) Objects() string { return p.Resolve(p.ObjectsDir) }

// Output returns the resolved output directory
func (p Paths) Output() string { return p.Resolve(p.OutputDir) }

// CategoryTable returns the resolved category CSV path
func (p Paths) CategoryTable() string { return p.Resolve(p.Categories) }
