package render

import (
	"image"

	"github.com/charmbracelet/log"
	"gocv.io/x/gocv"

	"github.com/swdee/go-synthset/errors"
)

// Overlap returns the region of a bgW x bgH background covered by a
// fgW x fgH foreground whose top-left corner is placed at 'at', together with
// the top-left point of the matching region in foreground coordinates.  The
// region is empty when the foreground lies completely off the background.
func Overlap(bgW, bgH, fgW, fgH int, at image.Point) (dst image.Rectangle, src image.Point) {

	placed := image.Rect(at.X, at.Y, at.X+fgW, at.Y+fgH)
	dst = placed.Intersect(image.Rect(0, 0, bgW, bgH))

	if dst.Empty() {
		return image.Rectangle{}, image.Point{}
	}

	return dst, dst.Min.Sub(at)
}

// AlphaComposite blends the BGRA foreground fg onto bg with its top-left
// corner at 'at', modifying bg in place.  Each color channel becomes
// alpha*fg + (1-alpha)*bg with alpha normalized from the 8-bit channel, and
// the result is truncated back to 8 bits.  Only the part of the foreground
// that overlaps the background is blended, the rest of bg is untouched, and a
// 4 channel background keeps its own alpha.  The blended background region is
// returned; it is empty when the placement misses the background entirely.
func AlphaComposite(bg *gocv.Mat, fg gocv.Mat, at image.Point, logger *log.Logger) (image.Rectangle, error) {

	if logger == nil {
		logger = log.Default()
	}

	if fg.Type() != gocv.MatTypeCV8UC4 {
		return image.Rectangle{}, errors.New(errors.ErrCodeMissingAlpha,
			"overlay image must have an alpha channel (4 channels), got %d", fg.Channels())
	}

	bgChans := bg.Channels()

	if bg.Type() != gocv.MatTypeCV8UC3 && bg.Type() != gocv.MatTypeCV8UC4 {
		return image.Rectangle{}, errors.New(errors.ErrCodeInvalidChannels,
			"background must be an 8-bit 3 or 4 channel image, got %d channels", bgChans)
	}

	dst, src := Overlap(bg.Cols(), bg.Rows(), fg.Cols(), fg.Rows(), at)

	if dst.Empty() {
		logger.Info("overlay position is outside the background image, skipping overlay",
			"x", at.X, "y", at.Y, "fg", image.Pt(fg.Cols(), fg.Rows()),
			"bg", image.Pt(bg.Cols(), bg.Rows()))
		return image.Rectangle{}, nil
	}

	if dst.Dx() < fg.Cols() || dst.Dy() < fg.Rows() {
		logger.Info("overlay partially outside the background image, clipping",
			"x", at.X, "y", at.Y, "region", dst)
	}

	// blend on the raw bytes, per pixel access through CGO is too slow
	bgData, err := bg.DataPtrUint8()

	if err != nil {
		return image.Rectangle{}, errors.Wrap(errors.ErrCodeInternal, err, "background data")
	}

	fgMat := fg

	if !fg.IsContinuous() {
		fgMat = fg.Clone()
		defer fgMat.Close()
	}

	fgData, err := fgMat.DataPtrUint8()

	if err != nil {
		return image.Rectangle{}, errors.Wrap(errors.ErrCodeInternal, err, "foreground data")
	}

	bgStride := bg.Cols() * bgChans
	fgStride := fgMat.Cols() * 4

	for row := 0; row < dst.Dy(); row++ {

		bgPos := (dst.Min.Y+row)*bgStride + dst.Min.X*bgChans
		fgPos := (src.Y+row)*fgStride + src.X*4

		for col := 0; col < dst.Dx(); col++ {

			b := bgPos + col*bgChans
			f := fgPos + col*4

			switch a := fgData[f+3]; a {
			case 0:
				// fully transparent leaves the background as is

			case 255:
				bgData[b+0] = fgData[f+0]
				bgData[b+1] = fgData[f+1]
				bgData[b+2] = fgData[f+2]

			default:
				alpha := float64(a) / 255.0

				for c := 0; c < 3; c++ {
					bv := float64(bgData[b+c])
					// same as alpha*fg + (1-alpha)*bg, written so the result
					// never leaves the [bg, fg] interval before truncation
					bgData[b+c] = uint8(bv + alpha*(float64(fgData[f+c])-bv))
				}
			}
		}
	}

	return dst, nil
}
