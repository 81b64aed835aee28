package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"gocv.io/x/gocv"

	"github.com/swdee/go-synthset/augment"
	"github.com/swdee/go-synthset/imageio"
	"github.com/swdee/go-synthset/internal/config"
)

func quiet() *log.Logger {
	return log.New(io.Discard)
}

func touch(t *testing.T, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeImage(t *testing.T, path string, m gocv.Mat) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := imageio.Write(path, m); err != nil {
		t.Fatalf("Write %s: %v", path, err)
	}
}

func TestScanFrames(t *testing.T) {

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.jpg"))
	touch(t, filepath.Join(dir, "clip1", "a.jpg"))
	touch(t, filepath.Join(dir, ".DS_Store"))

	frames, err := ScanFrames(dir)
	if err != nil {
		t.Fatalf("ScanFrames: %v", err)
	}

	want := []Frame{
		{Path: filepath.Join(dir, "b.jpg"), ID: "b"},
		{Path: filepath.Join(dir, "clip1", "a.jpg"), ID: "a"},
	}

	if !reflect.DeepEqual(frames, want) {
		t.Errorf("frames = %v, want %v", frames, want)
	}

	if _, err := ScanFrames(filepath.Join(dir, "missing")); err == nil {
		t.Errorf("missing directory gave no error")
	}
}

func TestScanObjects(t *testing.T) {

	dir := t.TempDir()
	touch(t, filepath.Join(dir, "traffic_cone", "c2.png"))
	touch(t, filepath.Join(dir, "traffic_cone", "c1.png"))
	touch(t, filepath.Join(dir, "bench", "b1.png"))
	touch(t, filepath.Join(dir, "loose.png"))
	touch(t, filepath.Join(dir, "bench", "nested", "skip.png"))

	if err := os.MkdirAll(filepath.Join(dir, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	objects, categories, err := ScanObjects(dir)
	if err != nil {
		t.Fatalf("ScanObjects: %v", err)
	}

	if want := []string{"bench", "empty", "traffic_cone"}; !reflect.DeepEqual(categories, want) {
		t.Errorf("categories = %v, want %v", categories, want)
	}

	want := []Object{
		{Path: filepath.Join(dir, "bench", "b1.png"), ID: "b1", Category: "bench"},
		{Path: filepath.Join(dir, "traffic_cone", "c1.png"), ID: "c1", Category: "traffic_cone"},
		{Path: filepath.Join(dir, "traffic_cone", "c2.png"), ID: "c2", Category: "traffic_cone"},
	}

	if !reflect.DeepEqual(objects, want) {
		t.Errorf("objects = %v, want %v", objects, want)
	}
}

func TestSampleFrames(t *testing.T) {

	frames := make([]Frame, 25)
	for i := range frames {
		frames[i] = Frame{ID: string(rune('a' + i))}
	}

	rnd := rand.New(rand.NewPCG(3, 4))

	tests := []struct {
		n    int
		want int
	}{
		{10, 10},
		{25, 25},
		{40, 25},
		{0, 0},
	}

	for _, tt := range tests {

		got := SampleFrames(frames, tt.n, rnd)

		if len(got) != tt.want {
			t.Errorf("SampleFrames(n=%d) returned %d frames, want %d", tt.n, len(got), tt.want)
		}

		seen := make(map[string]bool)
		for _, f := range got {
			if seen[f.ID] {
				t.Errorf("SampleFrames(n=%d) repeated frame %s", tt.n, f.ID)
			}
			seen[f.ID] = true
		}
	}

	// input order is untouched
	for i, f := range frames {
		if f.ID != string(rune('a'+i)) {
			t.Fatalf("frames reordered at %d", i)
		}
	}
}

func TestOutputName(t *testing.T) {

	got := OutputName(Frame{ID: "frame_0042"}, Object{ID: "cone_7", Category: "traffic_cone"})

	if want := "frame_0042_traffic_cone_cone_7.png"; got != want {
		t.Errorf("OutputName = %q, want %q", got, want)
	}
}

func TestPlan(t *testing.T) {

	frames := []Frame{{ID: "f1"}, {ID: "f2"}, {ID: "f3"}}
	objects := []Object{{ID: "o1", Category: "a"}, {ID: "o2", Category: "b"}}

	a := Plan(frames, objects, 2, rand.New(rand.NewPCG(1, 1)))
	b := Plan(frames, objects, 2, rand.New(rand.NewPCG(1, 1)))

	if len(a) != 4 {
		t.Fatalf("plan has %d jobs, want 4", len(a))
	}

	if !reflect.DeepEqual(a, b) {
		t.Errorf("plans differ for the same seed")
	}

	for i, j := range a {
		if j.Seq != int64(i+1) {
			t.Errorf("job %d seq = %d, want %d", i, j.Seq, i+1)
		}
	}

	if a[0].Object.ID != "o1" || a[2].Object.ID != "o2" {
		t.Errorf("objects not visited in order: %v", a)
	}
}

func TestIDGenerator(t *testing.T) {

	ids := NewIDGenerator()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids.GetNext()
		}()
	}
	wg.Wait()

	if ids.Last() != 50 {
		t.Errorf("last id = %d, want 50", ids.Last())
	}
}

func TestManifest(t *testing.T) {

	file := filepath.Join(t.TempDir(), ManifestFile)

	m, err := CreateManifest(file)
	if err != nil {
		t.Fatalf("CreateManifest: %v", err)
	}

	if err := m.Add(Entry{Seq: 1, Frame: "f.png", Box: []int{1, 2, 3, 4}, Visible: true}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Add(Entry{Seq: 2, Frame: "g.png", Error: "boom"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries := readManifest(t, file)

	if len(entries) != 2 {
		t.Fatalf("manifest has %d lines, want 2", len(entries))
	}

	for _, e := range entries {
		if e.RunID != m.RunID() {
			t.Errorf("entry %d run id = %q, want %q", e.Seq, e.RunID, m.RunID())
		}
	}

	if !reflect.DeepEqual(entries[0].Box, []int{1, 2, 3, 4}) || entries[1].Error != "boom" {
		t.Errorf("entries = %+v", entries)
	}
}

func readManifest(t *testing.T, file string) []Entry {
	t.Helper()

	f, err := os.Open(file)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var out []Entry

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("bad manifest line %q: %v", sc.Text(), err)
		}
		out = append(out, e)
	}

	return out
}

// dataFolder lays out three frames and three objects, one of which is not an
// image
func dataFolder(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	bg := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 90, 90, 0), 240, 320, gocv.MatTypeCV8UC3)
	defer bg.Close()

	writeImage(t, filepath.Join(dir, config.DefaultFramesDir, "f1.png"), bg)
	writeImage(t, filepath.Join(dir, config.DefaultFramesDir, "f2.png"), bg)
	writeImage(t, filepath.Join(dir, config.DefaultFramesDir, "clip", "f3.png"), bg)

	fg := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 255), 40, 40, gocv.MatTypeCV8UC4)
	defer fg.Close()

	writeImage(t, filepath.Join(dir, config.DefaultObjectsDir, "traffic_cone", "cone1.png"), fg)
	writeImage(t, filepath.Join(dir, config.DefaultObjectsDir, "bench", "bench1.png"), fg)
	touch(t, filepath.Join(dir, config.DefaultObjectsDir, "bench", "broken.png"))

	return dir
}

func testConfig(dir string) config.Config {

	cfg := config.Default()
	cfg.Paths.DataFolder = dir
	cfg.Generate.FramesPerObject = 2
	cfg.Generate.Workers = 2
	cfg.Generate.Seed = 11
	cfg.Generate.Preview = true

	return cfg
}

func TestGeneratorRun(t *testing.T) {

	dir := dataFolder(t)
	cfg := testConfig(dir)

	sum, err := NewGenerator(cfg, nil, augment.Identity(), quiet()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Frames != 3 || sum.Objects != 3 || sum.Jobs != 6 {
		t.Errorf("summary = %+v, want 3 frames, 3 objects, 6 jobs", sum)
	}

	if sum.Written != 4 || sum.Failed != 2 || sum.Hidden != 0 {
		t.Errorf("summary = %+v, want 4 written and 2 failed", sum)
	}

	out := cfg.Paths.Output()

	classes, err := os.ReadFile(filepath.Join(out, ClassesFile))
	if err != nil {
		t.Fatalf("reading classes: %v", err)
	}
	if string(classes) != "bench\ntraffic_cone\n" {
		t.Errorf("classes.txt = %q", classes)
	}

	entries := readManifest(t, filepath.Join(out, ManifestFile))
	if len(entries) != 6 {
		t.Fatalf("manifest has %d entries, want 6", len(entries))
	}

	for _, e := range entries {

		if e.Error != "" {
			if !strings.HasSuffix(e.Object, "broken.png") {
				t.Errorf("unexpected failure for %s: %s", e.Object, e.Error)
			}
			continue
		}

		name := filepath.Base(e.Output)
		if !strings.HasSuffix(name, "_"+e.Category+"_"+strings.TrimSuffix(filepath.Base(e.Object), ".png")+".png") {
			t.Errorf("output name %q does not follow frame_category_object", name)
		}

		img, err := imageio.ReadBackground(e.Output)
		if err != nil {
			t.Fatalf("reading composite: %v", err)
		}
		if img.Cols() != 320 || img.Rows() != 240 {
			t.Errorf("composite %s is %dx%d, want 320x240", name, img.Cols(), img.Rows())
		}
		img.Close()

		lbl, err := os.ReadFile(e.Label)
		if err != nil {
			t.Fatalf("reading label: %v", err)
		}

		fields := strings.Fields(string(lbl))
		if len(fields) != 5 {
			t.Errorf("label %s = %q, want one box line", e.Label, lbl)
		}

		wantClass := "0"
		if e.Category == "traffic_cone" {
			wantClass = "1"
		}
		if len(fields) > 0 && fields[0] != wantClass {
			t.Errorf("label class = %s, want %s for %s", fields[0], wantClass, e.Category)
		}

		if _, err := os.Stat(filepath.Join(out, PreviewDir, name)); err != nil {
			t.Errorf("preview missing for %s: %v", name, err)
		}
	}
}

func TestGeneratorReproducible(t *testing.T) {

	dir := dataFolder(t)

	run := func(outDir string) map[string][]byte {
		cfg := testConfig(dir)
		cfg.Paths.OutputDir = outDir
		cfg.Generate.Preview = false
		cfg.Generate.Workers = 3

		if _, err := NewGenerator(cfg, nil, nil, quiet()).Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}

		files, err := filepath.Glob(filepath.Join(cfg.Paths.Output(), "*.png"))
		if err != nil {
			t.Fatal(err)
		}

		out := make(map[string][]byte)
		for _, f := range files {
			img, err := imageio.ReadBackground(f)
			if err != nil {
				t.Fatalf("reading %s: %v", f, err)
			}
			out[filepath.Base(f)] = img.ToBytes()
			img.Close()
		}
		return out
	}

	a := run("out_a")
	b := run("out_b")

	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("runs wrote %d and %d composites", len(a), len(b))
	}

	for name, data := range a {
		if !bytes.Equal(data, b[name]) {
			t.Errorf("composite %s differs between runs with the same seed", name)
		}
	}
}

func TestGeneratorCancelled(t *testing.T) {

	dir := dataFolder(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := NewGenerator(testConfig(dir), nil, augment.Identity(), quiet()).Run(ctx)

	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}

	if sum.Written != 0 {
		t.Errorf("written = %d after cancel, want 0", sum.Written)
	}
}

func TestGeneratorEmptyData(t *testing.T) {

	dir := t.TempDir()

	for _, d := range []string{config.DefaultFramesDir, config.DefaultObjectsDir} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	sum, err := NewGenerator(testConfig(dir), nil, nil, quiet()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Jobs != 0 {
		t.Errorf("jobs = %d, want 0", sum.Jobs)
	}
}
