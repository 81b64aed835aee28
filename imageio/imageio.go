// Package imageio reads backgrounds and foregrounds from disk into 8-bit gocv
// Mats and writes composites back out.
//
// OpenCV is tried first.  Files it cannot decode are retried with the Go
// image decoders (png, jpeg, gif, webp, bmp and tiff) and converted to the
// same BGR or BGRA layout.
package imageio

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/swdee/go-synthset/errors"
)

// ReadBackground loads the image at path as a 3 channel BGR Mat
func ReadBackground(path string) (gocv.Mat, error) {

	img := gocv.IMRead(path, gocv.IMReadColor)

	if !img.Empty() {
		return to8Bit(img)
	}

	img.Close()

	return readFallback(path, false)
}

// ReadForeground loads the image at path keeping its alpha channel.  Images
// without alpha are returned as BGR, grayscale is expanded to BGR.
func ReadForeground(path string) (gocv.Mat, error) {

	img := gocv.IMRead(path, gocv.IMReadUnchanged)

	if img.Empty() {
		img.Close()
		return readFallback(path, true)
	}

	img, err := to8Bit(img)

	if err != nil {
		return img, err
	}

	if img.Type() == gocv.MatTypeCV8UC1 {
		bgr := gocv.NewMat()
		gocv.CvtColor(img, &bgr, gocv.ColorGrayToBGR)
		img.Close()
		return bgr, nil
	}

	return img, nil
}

// Write encodes img to path, the format is chosen from the file extension
func Write(path string, img gocv.Mat) error {

	if img.Empty() {
		return errors.New(errors.ErrCodeInvalidSize, "refusing to write empty image to %s", path)
	}

	if !gocv.IMWrite(path, img) {
		return errors.New(errors.ErrCodeWriteFailed, "error writing image %s", path)
	}

	return nil
}

// to8Bit converts 16-bit images to 8-bit, other types pass through
func to8Bit(img gocv.Mat) (gocv.Mat, error) {

	var mt gocv.MatType

	switch img.Type() {
	case gocv.MatTypeCV16UC1:
		mt = gocv.MatTypeCV8UC1
	case gocv.MatTypeCV16UC3:
		mt = gocv.MatTypeCV8UC3
	case gocv.MatTypeCV16UC4:
		mt = gocv.MatTypeCV8UC4
	default:
		return img, nil
	}

	dst := gocv.NewMat()
	img.ConvertToWithParams(&dst, mt, 1.0/257, 0)
	img.Close()

	return dst, nil
}

// readFallback decodes path with the Go image decoders
func readFallback(path string, keepAlpha bool) (gocv.Mat, error) {

	f, err := os.Open(path)

	if err != nil {
		return gocv.NewMat(), errors.Wrap(errors.ErrCodeUnreadableInput, err, "error opening file %s", path)
	}

	defer f.Close()

	src, _, err := image.Decode(f)

	if err != nil {
		return gocv.NewMat(), errors.Wrap(errors.ErrCodeUnreadableInput, err, "error decoding image %s", path)
	}

	return FromImage(src, keepAlpha && hasAlpha(src))
}

// FromImage converts a Go image to a BGRA Mat when alpha is set, otherwise
// to a BGR Mat.  Color values are un-premultiplied.
func FromImage(src image.Image, alpha bool) (gocv.Mat, error) {

	b := src.Bounds()

	if b.Empty() {
		return gocv.NewMat(), errors.New(errors.ErrCodeInvalidSize, "image has no pixels")
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)

	ch := 3
	mt := gocv.MatTypeCV8UC3

	if alpha {
		ch = 4
		mt = gocv.MatTypeCV8UC4
	}

	w, h := b.Dx(), b.Dy()
	data := make([]byte, w*h*ch)

	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]

		for x := 0; x < w; x++ {
			s := row[x*4 : x*4+4]
			d := data[(y*w+x)*ch:]

			d[0], d[1], d[2] = s[2], s[1], s[0]

			if alpha {
				d[3] = s[3]
			}
		}
	}

	return gocv.NewMatFromBytes(h, w, mt, data)
}

// hasAlpha reports whether the color model of img can carry transparency
func hasAlpha(img image.Image) bool {

	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}

	switch img.(type) {
	case *image.Gray, *image.Gray16, *image.YCbCr, *image.CMYK:
		return false
	}

	return true
}
