// media/types.go
package media

// DetectionResult describes one detected face within a frame, in pixel
// coordinates of the image that was given to the detector.
type DetectionResult struct {
	X          int
	Y          int
	W          int
	H          int
	Confidence float32
	Embedding  []float32
}

// Scale returns a copy of the detection with its box scaled by the given
// factor. Used to map boxes found on a downscaled frame back onto the
// full-size frame before annotation.
func (d DetectionResult) Scale(factor float64) DetectionResult {
	scaled := d
	scaled.X = int(float64(d.X) * factor)
	scaled.Y = int(float64(d.Y) * factor)
	scaled.W = int(float64(d.W) * factor)
	scaled.H = int(float64(d.H) * factor)
	return scaled
}
