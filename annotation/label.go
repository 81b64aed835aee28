// Package annotation derives detection labels for objects placed on a
// composite and formats them as YOLO text lines.
package annotation

import (
	"fmt"
	"image"
	"strings"

	clipper "github.com/ctessum/go.clipper"
	"gocv.io/x/gocv"

	"github.com/swdee/go-synthset/errors"
)

// Label is the part of a placed object that is visible on the canvas
type Label struct {
	// Class is the index of the object's category in the class list
	Class int
	// Name is the category name
	Name string
	// Box is the visible bounding box in canvas pixels, Max is exclusive
	Box image.Rectangle
	// Outline holds the visible object outline polygons in canvas pixels
	Outline [][]image.Point
}

// Empty reports whether nothing of the object is visible
func (l Label) Empty() bool {
	return l.Box.Empty()
}

// Visible finds the outline of the non transparent pixels of the BGRA
// foreground fg placed with its top left corner at at, clips it to a canvas
// of width x height and returns the visible part.  ok is false when no pixel
// of the object lands on the canvas.
func Visible(fg gocv.Mat, at image.Point, width, height int) (Label, bool, error) {

	if fg.Type() != gocv.MatTypeCV8UC4 {
		return Label{}, false, errors.New(errors.ErrCodeMissingAlpha,
			"foreground needs an alpha channel, got %d channels", fg.Channels())
	}

	canvas := image.Rect(0, 0, width, height)

	if canvas.Empty() {
		return Label{}, false, errors.New(errors.ErrCodeInvalidSize,
			"canvas has invalid size %dx%d", width, height)
	}

	placed := image.Rect(at.X, at.Y, at.X+fg.Cols(), at.Y+fg.Rows())

	if !placed.Overlaps(canvas) {
		return Label{}, false, nil
	}

	contours, err := outlines(fg)

	if err != nil {
		return Label{}, false, err
	}

	if len(contours) == 0 {
		return Label{}, false, nil
	}

	var lbl Label

	// contour points sit on pixel centers so the clip window ends on the
	// last pixel, not past it
	window := rectPath(image.Rect(0, 0, width-1, height-1))

	for _, c := range contours {

		moved := make([]image.Point, len(c))
		for i, pt := range c {
			moved[i] = pt.Add(at)
		}

		for _, poly := range clipPolygon(moved, window) {
			lbl.Outline = append(lbl.Outline, poly)
			lbl.Box = lbl.Box.Union(pixelBounds(poly))
		}

		// lines and single pixels have no area for the clipper, fall back
		// to their clipped bounds
		if len(moved) < 3 {
			lbl.Box = lbl.Box.Union(pixelBounds(moved).Intersect(canvas))
		}
	}

	return lbl, !lbl.Box.Empty(), nil
}

// outlines returns the external contours of the pixels of fg whose alpha is
// above zero, in foreground coordinates
func outlines(fg gocv.Mat) ([][]image.Point, error) {

	planes := gocv.Split(fg)

	defer func() {
		for _, p := range planes {
			p.Close()
		}
	}()

	mask := gocv.NewMat()
	defer mask.Close()

	gocv.Threshold(planes[3], &mask, 0, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	out := make([][]image.Point, 0, contours.Size())

	for i := 0; i < contours.Size(); i++ {
		pts := contours.At(i).ToPoints()
		if len(pts) > 0 {
			out = append(out, pts)
		}
	}

	return out, nil
}

// clipPolygon intersects the closed polygon pts with the clip window and
// returns the resulting polygons
func clipPolygon(pts []image.Point, window clipper.Path) [][]image.Point {

	if len(pts) < 3 {
		return nil
	}

	subject := make(clipper.Path, 0, len(pts))
	for _, pt := range pts {
		subject = append(subject, &clipper.IntPoint{X: clipper.CInt(pt.X), Y: clipper.CInt(pt.Y)})
	}

	c := clipper.NewClipper(clipper.IoNone)
	c.AddPath(subject, clipper.PtSubject, true)
	c.AddPath(window, clipper.PtClip, true)

	solution, ok := c.Execute1(clipper.CtIntersection, clipper.PftNonZero, clipper.PftNonZero)

	if !ok {
		return nil
	}

	out := make([][]image.Point, 0, len(solution))

	for _, path := range solution {

		if len(path) < 3 {
			continue
		}

		poly := make([]image.Point, len(path))
		for i, ip := range path {
			poly[i] = image.Pt(int(ip.X), int(ip.Y))
		}

		out = append(out, poly)
	}

	return out
}

// rectPath returns the corners of r as a closed clipper path, Max inclusive
func rectPath(r image.Rectangle) clipper.Path {
	return clipper.Path{
		{X: clipper.CInt(r.Min.X), Y: clipper.CInt(r.Min.Y)},
		{X: clipper.CInt(r.Max.X), Y: clipper.CInt(r.Min.Y)},
		{X: clipper.CInt(r.Max.X), Y: clipper.CInt(r.Max.Y)},
		{X: clipper.CInt(r.Min.X), Y: clipper.CInt(r.Max.Y)},
	}
}

// pixelBounds returns the rectangle covering every pixel in pts
func pixelBounds(pts []image.Point) image.Rectangle {

	if len(pts) == 0 {
		return image.Rectangle{}
	}

	r := image.Rectangle{Min: pts[0], Max: pts[0]}

	for _, pt := range pts[1:] {
		r.Min.X = min(r.Min.X, pt.X)
		r.Min.Y = min(r.Min.Y, pt.Y)
		r.Max.X = max(r.Max.X, pt.X)
		r.Max.Y = max(r.Max.Y, pt.Y)
	}

	r.Max = r.Max.Add(image.Pt(1, 1))

	return r
}

// YOLOLine formats box as a YOLO detection line "class cx cy w h" with all
// coordinates normalized to a canvas of width x height
func YOLOLine(class int, box image.Rectangle, width, height int) string {

	fw, fh := float64(width), float64(height)

	cx := float64(box.Min.X+box.Max.X) / 2 / fw
	cy := float64(box.Min.Y+box.Max.Y) / 2 / fh
	bw := float64(box.Dx()) / fw
	bh := float64(box.Dy()) / fh

	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", class, cx, cy, bw, bh)
}

// SegmentLine formats a polygon as a YOLO segmentation line
// "class x1 y1 x2 y2 ..." normalized to a canvas of width x height
func SegmentLine(class int, poly []image.Point, width, height int) string {

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", class)

	for _, pt := range poly {
		fmt.Fprintf(&sb, " %.6f %.6f", float64(pt.X)/float64(width), float64(pt.Y)/float64(height))
	}

	return sb.String()
}

// Lines returns the label as YOLO text lines.  Box labels produce a single
// line, segment labels one line per visible polygon.
func (l Label) Lines(format Format, width, height int) []string {

	if l.Empty() {
		return nil
	}

	if format == FormatSegment && len(l.Outline) > 0 {
		lines := make([]string, 0, len(l.Outline))
		for _, poly := range l.Outline {
			lines = append(lines, SegmentLine(l.Class, poly, width, height))
		}
		return lines
	}

	return []string{YOLOLine(l.Class, l.Box, width, height)}
}

// Format selects the YOLO label flavour
type Format string

const (
	// FormatBox writes one bounding box per object
	FormatBox Format = "box"
	// FormatSegment writes the visible outline polygons
	FormatSegment Format = "segment"
)

// ParseFormat returns the Format named s
func ParseFormat(s string) (Format, error) {

	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatBox, "":
		return FormatBox, nil
	case FormatSegment:
		return FormatSegment, nil
	}

	return "", errors.New(errors.ErrCodeInvalidConfig, "unknown label format %q", s)
}
