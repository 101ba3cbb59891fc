package media

import (
	"image"
	"log"
	"os"

	"gocv.io/x/gocv"
)

// FaceDetector wraps the res10 SSD face detection network
type FaceDetector struct {
	Net     gocv.Net
	Enabled bool

	// Configuration parameters
	InputSizeW    int
	InputSizeH    int
	MeanVal       gocv.Scalar
	ConfThreshold float32
}

// NewFaceDetector loads the SSD face detection model (Caffe prototxt + weights)
func NewFaceDetector(configPath, modelPath string) *FaceDetector {
	if configPath == "" || modelPath == "" {
		log.Println("detection: model paths are empty, disabling face detector")
		return &FaceDetector{Enabled: false}
	}

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		log.Printf("detection: ERROR - Model file does not exist: %s", modelPath)
		return &FaceDetector{Enabled: false}
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		log.Println("detection: ERROR - ReadNet returned an empty network. Check file path and integrity.")
		return &FaceDetector{Enabled: false}
	}

	log.Println("detection: successfully loaded face detection model")

	// Try to use CUDA if available
	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)

	if cudaBackendErr == nil && cudaTargetErr == nil {
		log.Println("detection: Set backend/target to CUDA")
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
		log.Println("detection: Set backend/target to CPU (Default)")
	}

	return &FaceDetector{
		Net:           net,
		Enabled:       true,
		InputSizeW:    300,
		InputSizeH:    300,
		MeanVal:       gocv.NewScalar(104.0, 177.0, 123.0, 0),
		ConfThreshold: 0.5,
	}
}

func (d *FaceDetector) Close() {
	if d != nil && d.Enabled {
		d.Net.Close()
		log.Println("detection: closed network")
		d.Enabled = false
	}
}

// DetectFaces runs face detection on the given image and returns boxes in
// its pixel coordinates
func (d *FaceDetector) DetectFaces(img gocv.Mat) []DetectionResult {
	if d == nil || !d.Enabled || img.Empty() {
		return nil
	}

	imgWidth := float32(img.Cols())
	imgHeight := float32(img.Rows())

	blob := gocv.BlobFromImage(img, 1.0, image.Pt(d.InputSizeW, d.InputSizeH), d.MeanVal, false, false)
	defer blob.Close()

	d.Net.SetInput(blob, "")
	output := d.Net.Forward("")
	defer output.Close()

	// output shape is [1, 1, N, 7]: (_, _, confidence, x1, y1, x2, y2)
	results := gocv.GetBlobChannel(output, 0, 0)
	defer results.Close()

	var detections []DetectionResult
	for r := 0; r < results.Rows(); r++ {
		confidence := results.GetFloatAt(r, 2)
		if confidence < d.ConfThreshold {
			continue
		}

		x1 := clampF(results.GetFloatAt(r, 3)*imgWidth, 0, imgWidth)
		y1 := clampF(results.GetFloatAt(r, 4)*imgHeight, 0, imgHeight)
		x2 := clampF(results.GetFloatAt(r, 5)*imgWidth, 0, imgWidth)
		y2 := clampF(results.GetFloatAt(r, 6)*imgHeight, 0, imgHeight)
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		detections = append(detections, DetectionResult{
			X:          int(x1),
			Y:          int(y1),
			W:          int(x2 - x1),
			H:          int(y2 - y1),
			Confidence: confidence,
		})
	}

	return detections
}

// DetectFacesAndExtractEmbeddings detects faces and attaches an embedding to
// each detection that the recognition model can process
func (d *FaceDetector) DetectFacesAndExtractEmbeddings(img gocv.Mat, recognitionModel *FaceRecognitionModel) []DetectionResult {
	detections := d.DetectFaces(img)
	if recognitionModel == nil || !recognitionModel.Enabled {
		return detections
	}

	for i := range detections {
		rect := image.Rect(detections[i].X, detections[i].Y,
			detections[i].X+detections[i].W, detections[i].Y+detections[i].H)
		faceRegion := img.Region(rect)
		embedding := recognitionModel.ExtractEmbedding(faceRegion)
		faceRegion.Close()

		if embedding != nil {
			detections[i].Embedding = embedding
		} else {
			log.Printf("detection: WARNING - failed to extract embedding for face at [%d,%d,%d,%d]",
				detections[i].X, detections[i].Y, detections[i].W, detections[i].H)
		}
	}

	return detections
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
