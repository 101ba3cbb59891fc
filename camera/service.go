package camera

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/camden-git/smartguardbackend/catalog"
	"github.com/camden-git/smartguardbackend/media"
)

// Mode selects what the detection loop does with each frame.
type Mode string

const (
	ModeAttendance Mode = "attendance"
	ModeCapture    Mode = "capture"
)

// DetectionCallback receives one event per detected face per cycle. Repeated
// emission for the same face is intentional; the consumer debounces.
type DetectionCallback func(label catalog.Label, known bool)

// Options configures the detection loop.
type Options struct {
	DeviceID       int
	FrameInterval  time.Duration
	ReadTimeout    time.Duration
	DetectionScale float64 // linear downscale before detection, e.g. 0.25
	CaptureDelay   time.Duration
}

type captureState int

const (
	captureIdle captureState = iota
	captureActive
)

type captureSession struct {
	state      captureState
	folder     string
	target     int
	count      int
	onComplete func()
}

// advance records one saved frame. When the counter reaches the target the
// session returns to idle and the completion callback is handed out exactly
// once; later cycles see an idle session and never reach advance again.
func (c *captureSession) advance() (count int, done bool, onComplete func()) {
	c.count++
	if c.count >= c.target {
		c.state = captureIdle
		onComplete = c.onComplete
		c.onComplete = nil
		return c.count, true, onComplete
	}
	return c.count, false, nil
}

// Service owns the camera device and runs the continuous detection loop.
// The annotated frame buffer is guarded for cross-thread reads by the HTTP
// surface; everything else is touched only from the loop goroutine.
type Service struct {
	opts        Options
	detector    *media.FaceDetector
	recognizer  *media.FaceRecognitionModel
	catalog     *catalog.Catalog
	onDetection DetectionCallback

	mu        sync.Mutex
	mode      Mode
	frameJPEG []byte
	capture   captureSession

	videoCapture *gocv.VideoCapture
	frames       chan gocv.Mat
	stopCh       chan struct{}
	wg           sync.WaitGroup
	started      bool
}

// NewService creates a detection loop service. Start must be called before
// frames are produced.
func NewService(opts Options, detector *media.FaceDetector, recognizer *media.FaceRecognitionModel, cat *catalog.Catalog, onDetection DetectionCallback) *Service {
	if opts.DetectionScale <= 0 || opts.DetectionScale > 1 {
		opts.DetectionScale = 0.25
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 33 * time.Millisecond
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	return &Service{
		opts:        opts,
		detector:    detector,
		recognizer:  recognizer,
		catalog:     cat,
		onDetection: onDetection,
		mode:        ModeAttendance,
		frames:      make(chan gocv.Mat, 1),
		stopCh:      make(chan struct{}),
	}
}

// Start opens the camera device and launches the grabber and loop
// goroutines. Failure to acquire the camera is the one fatal condition in
// the system; there is no fallback capture source.
func (s *Service) Start() error {
	if s.started {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(s.opts.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to open camera device %d: %w", s.opts.DeviceID, err)
	}
	s.videoCapture = vc
	s.started = true

	s.wg.Add(2)
	go s.grabFrames()
	go s.loop()

	log.Printf("camera: started on device %d (detection scale %g, frame interval %s)",
		s.opts.DeviceID, s.opts.DetectionScale, s.opts.FrameInterval)
	return nil
}

// Stop tears the loop down. Teardown is abrupt: in-flight capture or
// detection work is abandoned, matching the only teardown primitive the
// system defines.
func (s *Service) Stop() {
	if !s.started {
		return
	}
	close(s.stopCh)
	s.wg.Wait()

	// drain any frame the grabber parked before it observed the stop
	select {
	case frame := <-s.frames:
		frame.Close()
	default:
	}

	if s.videoCapture != nil {
		s.videoCapture.Close()
	}
	s.started = false
	log.Println("camera: stopped")
}

// grabFrames reads from the device on its own goroutine so the loop can
// bound each read with a timeout instead of blocking on a stalled camera.
func (s *Service) grabFrames() {
	defer s.wg.Done()
	readFailures := 0
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		img := gocv.NewMat()
		if ok := s.videoCapture.Read(&img); !ok || img.Empty() {
			img.Close()
			readFailures++
			if shouldLogReadFailure(readFailures) {
				log.Printf("camera: failed to read frame from device %d (%d consecutive failures)", s.opts.DeviceID, readFailures)
			}
			// back off so an unplugged device does not spin the goroutine
			select {
			case <-s.stopCh:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		readFailures = 0

		select {
		case s.frames <- img:
		case <-s.stopCh:
			img.Close()
			return
		}
	}
}

// shouldLogReadFailure rate-limits read failure logging: the first failure
// and every hundredth after it.
func shouldLogReadFailure(failures int) bool {
	return failures == 1 || failures%100 == 0
}

func (s *Service) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case frame := <-s.frames:
			s.processFrame(&frame)
			frame.Close()
		case <-time.After(s.opts.ReadTimeout):
			log.Printf("camera: no frame within %s, device may be stalled", s.opts.ReadTimeout)
			continue
		}

		select {
		case <-s.stopCh:
			return
		case <-time.After(s.opts.FrameInterval):
		}
	}
}

func (s *Service) processFrame(frame *gocv.Mat) {
	// mirror flip so the on-screen feed behaves like a mirror
	flipped := gocv.NewMat()
	gocv.Flip(*frame, &flipped, 1)
	defer flipped.Close()

	switch s.currentMode() {
	case ModeAttendance:
		s.processAttendance(&flipped)
	case ModeCapture:
		s.processCapture(&flipped)
	}

	s.publishFrame(&flipped)
}

// processAttendance detects on a downscaled copy to bound latency, then maps
// boxes back up by the inverse factor for annotation on the full frame.
func (s *Service) processAttendance(frame *gocv.Mat) {
	small := gocv.NewMat()
	gocv.Resize(*frame, &small, image.Point{}, s.opts.DetectionScale, s.opts.DetectionScale, gocv.InterpolationLinear)
	defer small.Close()

	detections := s.detector.DetectFacesAndExtractEmbeddings(small, s.recognizer)
	inverse := 1.0 / s.opts.DetectionScale

	for _, det := range detections {
		var label catalog.Label
		known := false
		if det.Embedding != nil {
			label, known = s.catalog.Match(det.Embedding)
		}

		if s.onDetection != nil {
			s.onDetection(label, known)
		}

		name := catalog.UnknownName
		if known {
			name = label.String()
		}
		media.AnnotateFace(frame, det.Scale(inverse), name, known)
	}
}

func (s *Service) processCapture(frame *gocv.Mat) {
	s.mu.Lock()
	if s.capture.state != captureActive {
		s.mu.Unlock()
		media.DrawOverlay(frame, "Capture Mode", color.RGBA{B: 255})
		return
	}

	target := s.capture.target
	folder := s.capture.folder
	count, done, onComplete := s.capture.advance()
	s.mu.Unlock()

	filename := filepath.Join(folder, fmt.Sprintf("img_%d.jpg", count-1))
	if ok := gocv.IMWrite(filename, *frame); !ok {
		log.Printf("camera: failed to write capture frame %s", filename)
	}

	media.DrawOverlay(frame, fmt.Sprintf("Capturing %d/%d", count, target), color.RGBA{R: 255})

	if done {
		log.Printf("camera: capture session complete (%d frames in %s)", target, folder)
		if onComplete != nil {
			go onComplete()
		}
		return
	}

	// slow capture below frame rate so poses differ between shots
	select {
	case <-s.stopCh:
	case <-time.After(s.opts.CaptureDelay):
	}
}

func (s *Service) publishFrame(frame *gocv.Mat) {
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		log.Printf("camera: failed to encode frame: %v", err)
		return
	}
	defer buf.Close()

	jpeg := make([]byte, len(buf.GetBytes()))
	copy(jpeg, buf.GetBytes())

	s.mu.Lock()
	s.frameJPEG = jpeg
	s.mu.Unlock()
}

// GetFrame returns the most recently published annotated frame as JPEG
// bytes, or nil before the first frame. Readers get a stale-but-consistent
// snapshot, never a torn frame.
func (s *Service) GetFrame() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameJPEG
}

// SetMode switches between attendance and capture processing. The switch is
// external; the loop never changes modes on its own.
func (s *Service) SetMode(mode Mode) error {
	if mode != ModeAttendance && mode != ModeCapture {
		return fmt.Errorf("unknown camera mode %q", mode)
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return nil
}

// CurrentMode returns the active processing mode.
func (s *Service) CurrentMode() Mode {
	return s.currentMode()
}

func (s *Service) currentMode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// StartCaptureSession switches to capture mode and begins saving frames into
// folder until targetCount frames exist, then invokes onComplete exactly
// once. There is no cancellation path short of stopping the camera.
func (s *Service) StartCaptureSession(folder string, targetCount int, onComplete func()) error {
	if targetCount <= 0 {
		return fmt.Errorf("capture target count must be positive, got %d", targetCount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture.state == captureActive {
		return fmt.Errorf("a capture session is already active for %s", s.capture.folder)
	}

	s.capture = captureSession{
		state:      captureActive,
		folder:     folder,
		target:     targetCount,
		onComplete: onComplete,
	}
	s.mode = ModeCapture
	log.Printf("camera: capture session started (%d frames into %s)", targetCount, folder)
	return nil
}

// CaptureActive reports whether a capture session is in progress.
func (s *Service) CaptureActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture.state == captureActive
}
