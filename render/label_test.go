package render

import (
	"bytes"
	"image"
	"testing"

	"gocv.io/x/gocv"
)

func TestCaptions(t *testing.T) {

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	Captions(&img, []Caption{{
		Box:   image.Rect(20, 40, 60, 80),
		Text:  "bench",
		Class: 2,
	}}, DefaultFont(), 1)

	data := img.ToBytes()
	clr := ColorFor(2)
	want := []byte{clr.B, clr.G, clr.R}

	at := func(x, y int) []byte {
		i := (y*100 + x) * 3
		return data[i : i+3]
	}

	tests := []struct {
		name string
		pt   image.Point
		want []byte
	}{
		{"box edge", image.Pt(20, 60), want},
		{"tab padding", image.Pt(21, 25), want},
		{"inside box", image.Pt(40, 60), []byte{0, 0, 0}},
		{"far corner", image.Pt(95, 95), []byte{0, 0, 0}},
	}

	for _, tc := range tests {
		if got := at(tc.pt.X, tc.pt.Y); !bytes.Equal(got, tc.want) {
			t.Errorf("%s pixel %v = %v, want %v", tc.name, tc.pt, got, tc.want)
		}
	}
}
