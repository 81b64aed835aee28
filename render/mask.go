package render

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/swdee/go-synthset/errors"
)

// Tint blends the class color over every pixel of the BGR img that lies
// inside the outline polygons.  alpha is the weight of the class color.
func Tint(img *gocv.Mat, outline [][]image.Point, class int, alpha float32) error {

	if len(outline) == 0 {
		return nil
	}

	if img.Type() != gocv.MatTypeCV8UC3 {
		return errors.New(errors.ErrCodeInvalidChannels,
			"tint needs a 3 channel image, got %d channels", img.Channels())
	}

	width := img.Cols()
	height := img.Rows()

	mask := gocv.Zeros(height, width, gocv.MatTypeCV8UC1)
	defer mask.Close()

	pts := gocv.NewPointsVectorFromPoints(outline)
	defer pts.Close()

	gocv.FillPoly(&mask, pts, White)

	if !img.IsContinuous() {
		cl := img.Clone()
		img.Close()
		*img = cl
	}

	// pixel access over CGO is slow so work on the raw bytes
	imgData, err := img.DataPtrUint8()

	if err != nil {
		return err
	}

	maskData := mask.ToBytes()
	clr := ColorFor(class)

	for idx, m := range maskData {

		if m == 0 {
			continue
		}

		pixelPos := idx * 3

		b, g, r := imgData[pixelPos+0], imgData[pixelPos+1], imgData[pixelPos+2]

		imgData[pixelPos+0] = uint8(float32(b)*(1-alpha) + float32(clr.B)*alpha)
		imgData[pixelPos+1] = uint8(float32(g)*(1-alpha) + float32(clr.G)*alpha)
		imgData[pixelPos+2] = uint8(float32(r)*(1-alpha) + float32(clr.R)*alpha)
	}

	return nil
}
