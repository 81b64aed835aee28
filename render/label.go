package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Caption is a box with text drawn on a preview of a composite
type Caption struct {
	// Box is the rectangle drawn around the object
	Box image.Rectangle
	// Text is written in a filled tab above the box
	Text string
	// Class selects the palette color
	Class int
	// Outline, when set, is drawn as a closed polygon inside the box
	Outline [][]image.Point
}

// Captions renders boxes, outlines and text tabs on img.  Tabs are drawn
// last so they are the top most layer.
func Captions(img *gocv.Mat, captions []Caption, font Font, lineThickness int) {

	type tab struct {
		rect    image.Rectangle
		clr     color.RGBA
		text    string
		textPos image.Point
	}

	tabs := make([]tab, 0, len(captions))

	for _, c := range captions {

		useClr := ColorFor(c.Class)

		if len(c.Outline) > 0 {
			ptsVec := gocv.NewPointsVectorFromPoints(c.Outline)
			gocv.Polylines(img, ptsVec, true, useClr, lineThickness)
			ptsVec.Close()
		}

		gocv.Rectangle(img, c.Box, useClr, lineThickness)

		if c.Text == "" {
			continue
		}

		textSize := gocv.GetTextSize(c.Text, font.Face, font.Scale, font.Thickness)

		// Calculate the alignment of the caption
		var centerX int

		switch font.Alignment {
		case Center:
			centerX = (c.Box.Min.X + c.Box.Max.X) / 2

		case Right:
			centerX = c.Box.Max.X - (textSize.X / 2) - font.RightPad + (lineThickness / 2)

		case Left:
			fallthrough
		default:
			centerX = c.Box.Min.X + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
		}

		top := c.Box.Min.Y

		// keep the tab on the image when the box touches the top edge
		if top-textSize.Y-font.TopPad-font.BottomPad < 0 {
			top = textSize.Y + font.TopPad + font.BottomPad
		}

		tabs = append(tabs, tab{
			rect: image.Rect(centerX-textSize.X/2-font.LeftPad,
				top-textSize.Y-font.TopPad-font.BottomPad,
				centerX+textSize.X/2+font.RightPad, top),
			clr:     useClr,
			text:    c.Text,
			textPos: image.Pt(centerX-textSize.X/2, top-font.BottomPad),
		})
	}

	for _, t := range tabs {
		// draw box text gets written on
		gocv.Rectangle(img, t.rect, t.clr, -1)

		gocv.PutTextWithParams(img, t.text, t.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}
