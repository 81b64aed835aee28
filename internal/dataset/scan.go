// Package dataset enumerates the frames and prepared objects of a data
// folder and drives batch composition over them.
package dataset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/swdee/go-synthset/errors"
)

// Frame is a background image
type Frame struct {
	Path string
	// ID is the file name without extension
	ID string
}

// Object is a prepared foreground cut-out
type Object struct {
	Path string
	// ID is the file name without extension
	ID string
	// Category is the name of the directory holding the object
	Category string
}

// Rand picks frames for an object.  *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// fileID returns the base name of path without its extension
func fileID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// hidden reports whether name is a dot file
func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// ScanFrames returns every file below dir, searched recursively and sorted by
// path
func ScanFrames(dir string) ([]Frame, error) {

	var frames []Frame

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {

		if err != nil {
			return err
		}

		if d.IsDir() || hidden(d.Name()) {
			return nil
		}

		frames = append(frames, Frame{Path: path, ID: fileID(path)})
		return nil
	})

	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnreadableInput, err, "error scanning frames in %s", dir)
	}

	sort.Slice(frames, func(i, j int) bool {
		return frames[i].Path < frames[j].Path
	})

	return frames, nil
}

// ScanObjects returns the files directly inside each sub directory of dir,
// the sub directory name being the category.  Files in dir itself are
// ignored.  Objects are sorted by category then path, categories are
// returned in sorted order including those without any object.
func ScanObjects(dir string) ([]Object, []string, error) {

	entries, err := os.ReadDir(dir)

	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeUnreadableInput, err, "error reading objects in %s", dir)
	}

	var (
		objects    []Object
		categories []string
	)

	// ReadDir returns entries sorted by name
	for _, e := range entries {

		if !e.IsDir() || hidden(e.Name()) {
			continue
		}

		category := e.Name()
		categories = append(categories, category)

		files, err := os.ReadDir(filepath.Join(dir, category))

		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeUnreadableInput, err,
				"error reading category %s", category)
		}

		for _, f := range files {

			if f.IsDir() || hidden(f.Name()) {
				continue
			}

			path := filepath.Join(dir, category, f.Name())
			objects = append(objects, Object{Path: path, ID: fileID(path), Category: category})
		}
	}

	return objects, categories, nil
}

// SampleFrames returns min(n, len(frames)) distinct frames chosen uniformly
// at random.  frames is not modified.
func SampleFrames(frames []Frame, n int, rnd Rand) []Frame {

	n = min(n, len(frames))

	if n <= 0 {
		return nil
	}

	idx := make([]int, len(frames))
	for i := range idx {
		idx[i] = i
	}

	// partial Fisher-Yates, the first n slots end up a uniform sample
	out := make([]Frame, n)

	for i := 0; i < n; i++ {
		j := i + rnd.IntN(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = frames[idx[i]]
	}

	return out
}

// OutputName returns the composite file name for an object on a frame,
// {frame_id}_{category}_{object_id}.png
func OutputName(f Frame, o Object) string {
	return fmt.Sprintf("%s_%s_%s.png", f.ID, o.Category, o.ID)
}

// Job is a single composition of an object onto a frame
type Job struct {
	// Seq numbers jobs from 1 in plan order
	Seq    int64
	Frame  Frame
	Object Object
	// Name is the output file name of the composite
	Name string
}

// Plan pairs every object with up to perObject distinct random frames.
// Objects are visited in order so a plan is reproducible for a given random
// source.
func Plan(frames []Frame, objects []Object, perObject int, rnd Rand) []Job {

	ids := NewIDGenerator()

	jobs := make([]Job, 0, len(objects)*max(min(perObject, len(frames)), 0))

	for _, o := range objects {
		for _, f := range SampleFrames(frames, perObject, rnd) {
			jobs = append(jobs, Job{
				Seq:    ids.GetNext(),
				Frame:  f,
				Object: o,
				Name:   OutputName(f, o),
			})
		}
	}

	return jobs
}
