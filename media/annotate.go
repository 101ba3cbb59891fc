package media

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	knownColor   = color.RGBA{G: 255}          // green box for recognized faces
	unknownColor = color.RGBA{R: 255}          // red box for unknown faces
	labelText    = color.RGBA{R: 255, G: 255, B: 255}
)

// AnnotateFace draws a bounding box and a filled name strip under it, in the
// style of the attendance display: green for recognized, red for unknown.
func AnnotateFace(frame *gocv.Mat, det DetectionResult, name string, known bool) {
	boxColor := unknownColor
	if known {
		boxColor = knownColor
	}

	rect := image.Rect(det.X, det.Y, det.X+det.W, det.Y+det.H)
	gocv.Rectangle(frame, rect, boxColor, 2)

	strip := image.Rect(rect.Min.X, rect.Max.Y-35, rect.Max.X, rect.Max.Y)
	gocv.Rectangle(frame, strip, boxColor, -1)

	origin := image.Pt(rect.Min.X+6, rect.Max.Y-6)
	gocv.PutText(frame, name, origin, gocv.FontHersheyDuplex, 0.8, labelText, 1)
}

// DrawOverlay writes a status line in the top-left corner of the frame,
// used for capture-mode feedback.
func DrawOverlay(frame *gocv.Mat, text string, c color.RGBA) {
	gocv.PutText(frame, text, image.Pt(50, 50), gocv.FontHersheySimplex, 1, c, 2)
}
