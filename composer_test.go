package synthset

import (
	"bytes"
	"image"
	"io"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"gocv.io/x/gocv"

	"github.com/swdee/go-synthset/annotation"
	"github.com/swdee/go-synthset/augment"
	"github.com/swdee/go-synthset/errors"
	"github.com/swdee/go-synthset/scale"
)

func quiet() *log.Logger {
	return log.New(io.Discard)
}

func testTable(t *testing.T) *scale.Table {
	t.Helper()

	csv := "Object name,scale factor\nTraffic Cone,0.5\nBench,3.0\n"

	tbl, err := scale.LoadCSV(strings.NewReader(csv), quiet())
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	return tbl
}

func grayBG(t *testing.T, w, h int) gocv.Mat {
	t.Helper()
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 90, 90, 0), h, w, gocv.MatTypeCV8UC3)
}

func redFG(t *testing.T, w, h int) gocv.Mat {
	t.Helper()
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 255), h, w, gocv.MatTypeCV8UC4)
}

func identityComposer(t *testing.T, seed uint64) *Composer {
	t.Helper()

	return NewComposer(testTable(t), Options{
		Seed:     seed,
		Pipeline: augment.Identity(),
		Classes:  annotation.NewClasses([]string{"bench", "traffic_cone"}),
		Logger:   quiet(),
	})
}

func TestComposeRedBlock(t *testing.T) {

	bg := grayBG(t, 1000, 800)
	defer bg.Close()

	fg := redFG(t, 100, 100)
	defer fg.Close()

	before := bg.ToBytes()

	res, err := identityComposer(t, 1).Compose(bg, fg, "fire hydrant")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	defer res.Close()

	if !bytes.Equal(before, bg.ToBytes()) {
		t.Errorf("caller's background was modified")
	}

	if res.Composite.Cols() != 1000 || res.Composite.Rows() != 800 {
		t.Fatalf("composite size = %dx%d, want 1000x800", res.Composite.Cols(), res.Composite.Rows())
	}

	if res.Scale != 1.0 {
		t.Errorf("scale = %v, want 1.0 for an unknown category", res.Scale)
	}

	if res.Size != image.Pt(100, 100) {
		t.Errorf("size = %v, want (100,100)", res.Size)
	}

	// target (450,525) with jitter 30 and 75
	at := res.Placement
	if at.X < 420 || at.X > 480 || at.Y < 450 || at.Y > 600 {
		t.Errorf("placement %v outside the jitter window", at)
	}

	want := image.Rect(at.X, at.Y, at.X+100, at.Y+100)

	if res.Region != want {
		t.Errorf("region = %v, want %v", res.Region, want)
	}

	if !res.Visible || res.Label.Box != want {
		t.Errorf("label box = %v visible %v, want %v", res.Label.Box, res.Visible, want)
	}

	if res.Label.Name != "fire_hydrant" {
		t.Errorf("label name = %q, want fire_hydrant", res.Label.Name)
	}

	data := res.Composite.ToBytes()

	for _, pt := range []image.Point{want.Min, want.Max.Sub(image.Pt(1, 1)), {at.X + 50, at.Y + 50}} {
		i := (pt.Y*1000 + pt.X) * 3
		if !bytes.Equal(data[i:i+3], []byte{0, 0, 255}) {
			t.Errorf("pixel %v = %v, want red", pt, data[i:i+3])
		}
	}

	for _, pt := range []image.Point{{0, 0}, {at.X - 1, at.Y}, {at.X, at.Y + 100}} {
		i := (pt.Y*1000 + pt.X) * 3
		if !bytes.Equal(data[i:i+3], []byte{90, 90, 90}) {
			t.Errorf("pixel %v = %v, want background", pt, data[i:i+3])
		}
	}
}

func TestComposeCategoryScale(t *testing.T) {

	bg := grayBG(t, 1000, 800)
	defer bg.Close()

	fg := redFG(t, 100, 60)
	defer fg.Close()

	res, err := identityComposer(t, 2).Compose(bg, fg, "Traffic Cone")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	defer res.Close()

	if res.Scale != 0.5 || res.Size != image.Pt(50, 30) {
		t.Errorf("scale %v size %v, want 0.5 and (50,30)", res.Scale, res.Size)
	}

	if res.Category != "traffic_cone" || res.Label.Class != 1 {
		t.Errorf("category %q class %d, want traffic_cone and 1", res.Category, res.Label.Class)
	}
}

func TestComposeFitsLargeObject(t *testing.T) {

	bg := grayBG(t, 400, 300)
	defer bg.Close()

	fg := redFG(t, 800, 200)
	defer fg.Close()

	res, err := identityComposer(t, 3).Compose(bg, fg, "unknown")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	defer res.Close()

	if res.Size != image.Pt(400, 100) {
		t.Errorf("size = %v, want (400,100)", res.Size)
	}
}

func TestComposeErrors(t *testing.T) {

	bg := grayBG(t, 1000, 800)
	defer bg.Close()

	big := redFG(t, 400, 400)
	defer big.Close()

	gray := gocv.NewMatWithSize(50, 50, gocv.MatTypeCV8UC1)
	defer gray.Close()

	tests := []struct {
		name     string
		fg       gocv.Mat
		category string
		stage    string
		code     errors.Code
	}{
		{"oversized after rescale", big, "bench", "placement:", errors.ErrCodeOversizedForeground},
		{"unsupported channels", gray, "bench", "augment:", errors.ErrCodeInvalidChannels},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {

			before := bg.ToBytes()

			res, err := identityComposer(t, 4).Compose(bg, tt.fg, tt.category)

			if res != nil {
				res.Close()
				t.Fatalf("got a result, want an error")
			}

			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want code %s", err, tt.code)
			}

			if !errors.IsValidation(err) {
				t.Errorf("err = %v, want a validation error", err)
			}

			if !strings.HasPrefix(err.Error(), tt.stage) {
				t.Errorf("err = %q, want prefix %q", err, tt.stage)
			}

			if !bytes.Equal(before, bg.ToBytes()) {
				t.Errorf("background modified by a failed composition")
			}
		})
	}
}

func TestComposeDeterministic(t *testing.T) {

	bg := grayBG(t, 320, 240)
	defer bg.Close()

	fg := redFG(t, 60, 40)
	defer fg.Close()

	run := func() ([]byte, image.Point) {
		c := NewComposer(testTable(t), Options{Seed: 99, Logger: quiet()})

		res, err := c.Compose(bg, fg, "bench")
		if err != nil {
			t.Fatalf("Compose: %v", err)
		}
		defer res.Close()

		return res.Composite.ToBytes(), res.Placement
	}

	a, atA := run()
	b, atB := run()

	if atA != atB || !bytes.Equal(a, b) {
		t.Errorf("same seed produced different composites: %v vs %v", atA, atB)
	}
}

func TestComposerReseed(t *testing.T) {

	bg := grayBG(t, 320, 240)
	defer bg.Close()

	fg := redFG(t, 60, 40)
	defer fg.Close()

	fresh := NewComposer(testTable(t), Options{Seed: 5, Logger: quiet()})

	used := NewComposer(testTable(t), Options{Seed: 77, Logger: quiet()})

	// advance the source before reseeding
	first, err := used.Compose(bg, fg, "bench")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	first.Close()

	if !used.Reseed(5) {
		t.Fatalf("Reseed reported an external source")
	}

	a, err := fresh.Compose(bg, fg, "bench")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	defer a.Close()

	b, err := used.Compose(bg, fg, "bench")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	defer b.Close()

	if a.Placement != b.Placement || !bytes.Equal(a.Composite.ToBytes(), b.Composite.ToBytes()) {
		t.Errorf("reseeded composer differs from a fresh one")
	}

	ext := NewComposer(nil, Options{Rand: rand.New(rand.NewPCG(1, 1)), Logger: quiet()})
	if ext.Reseed(1) {
		t.Errorf("Reseed reported success for an external source")
	}
}
