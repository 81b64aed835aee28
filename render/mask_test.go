package render

import (
	"bytes"
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/swdee/go-synthset/errors"
)

func TestTint(t *testing.T) {

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 20, 20, gocv.MatTypeCV8UC3)
	defer img.Close()

	outline := [][]image.Point{{{5, 5}, {14, 5}, {14, 14}, {5, 14}}}

	if err := Tint(&img, outline, 1, 0.5); err != nil {
		t.Fatalf("Tint: %v", err)
	}

	data := img.ToBytes()
	clr := ColorFor(1)

	inside := data[(10*20+10)*3 : (10*20+10)*3+3]
	want := []byte{uint8(float32(clr.B) * 0.5), uint8(float32(clr.G) * 0.5), uint8(float32(clr.R) * 0.5)}

	if !bytes.Equal(inside, want) {
		t.Errorf("inside pixel = %v, want %v", inside, want)
	}

	for _, pt := range []image.Point{{0, 0}, {4, 10}, {19, 19}} {
		i := (pt.Y*20 + pt.X) * 3
		if !bytes.Equal(data[i:i+3], []byte{0, 0, 0}) {
			t.Errorf("pixel %v outside the outline = %v, want untouched", pt, data[i:i+3])
		}
	}
}

func TestTintRejectsBGRA(t *testing.T) {

	img := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC4)
	defer img.Close()

	err := Tint(&img, [][]image.Point{{{0, 0}, {3, 0}, {3, 3}}}, 0, 0.5)

	if !errors.Is(err, errors.ErrCodeInvalidChannels) {
		t.Errorf("err = %v, want %s", err, errors.ErrCodeInvalidChannels)
	}
}
