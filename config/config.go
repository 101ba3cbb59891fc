package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultAvatarsSubDir = "avatars"
)

const (
	defaultCameraDeviceID     = 0
	defaultFrameIntervalMs    = 33
	defaultCaptureTargetCount = 20
	defaultCaptureDelayMs     = 200
	defaultCooldownSeconds    = 10
	defaultCameraReadTimeout  = 5
	defaultEmailSendTimeout   = 15
	defaultJobQueueSize       = 32
	defaultNumJobWorkers      = 1
	defaultAvatarMaxSize      = 256
	defaultMatchTolerance     = 0.6
	defaultDetectionScale     = 0.25
)

type Config struct {
	// database path
	DatabasePath string

	// enrollment dataset root (one <id>_<name> subdirectory per identity)
	DatasetPath string

	// serialized face catalog file
	EncodingsPath string

	// media storage configuration
	MediaStoragePath string // primary root for generated assets
	AvatarsPath      string // full-calculated path for identity avatars
	AvatarMaxSize    int

	// camera settings
	CameraDeviceID    int
	FrameInterval     time.Duration
	CameraReadTimeout time.Duration
	DetectionScale    float64 // linear downscale applied before detection

	// enrollment capture settings
	CaptureTargetCount int
	CaptureDelay       time.Duration

	// attendance settings
	Cooldown       time.Duration
	MatchTolerance float64

	// notification settings (SMTP)
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPFrom         string
	EmailSendTimeout time.Duration

	// job runner settings
	JobQueueSize  int
	NumJobWorkers int

	// face model paths (DNN)
	FaceDNNNetConfigPath string
	FaceDNNNetModelPath  string
	FaceRecModelPath     string
	FaceRecModelName     string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "smartguard.db")

	dataset := getEnvOrDefault("DATASET_PATH", "dataset")
	absDataset, err := filepath.Abs(dataset)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for dataset directory '%s': %w", dataset, err)
	}

	encodings := getEnvOrDefault("ENCODINGS_PATH", "encodings.bin")
	absEncodings, err := filepath.Abs(encodings)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for encodings file '%s': %w", encodings, err)
	}

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	avatarSubDir := getEnvOrDefault("AVATARS_SUBDIR", DefaultAvatarsSubDir)
	absAvatarsPath := filepath.Join(absMediaStorage, avatarSubDir)

	faceDNNConfig := getEnvOrDefault("FACE_DNN_CONFIG_PATH", "./models/deploy.prototxt.txt")
	faceDNNModel := getEnvOrDefault("FACE_DNN_MODEL_PATH", "./models/res10_300x300_ssd_iter_140000_fp16.caffemodel")
	faceRecModel := getEnvOrDefault("FACE_REC_MODEL_PATH", "./models/arcface.onnx")
	faceRecName := getEnvOrDefault("FACE_REC_MODEL_NAME", "arcface")

	cfg := Config{
		DatabasePath:         dbPath,
		DatasetPath:          absDataset,
		EncodingsPath:        absEncodings,
		MediaStoragePath:     absMediaStorage,
		AvatarsPath:          absAvatarsPath,
		AvatarMaxSize:        getEnvIntOrDefault("AVATAR_MAX_SIZE", defaultAvatarMaxSize),
		CameraDeviceID:       getEnvIntOrDefault("CAMERA_DEVICE_ID", defaultCameraDeviceID),
		FrameInterval:        time.Duration(getEnvIntOrDefault("FRAME_INTERVAL_MS", defaultFrameIntervalMs)) * time.Millisecond,
		CameraReadTimeout:    time.Duration(getEnvIntOrDefault("CAMERA_READ_TIMEOUT_SECONDS", defaultCameraReadTimeout)) * time.Second,
		DetectionScale:       getEnvFloatOrDefault("DETECTION_SCALE", defaultDetectionScale),
		CaptureTargetCount:   getEnvIntOrDefault("CAPTURE_TARGET_COUNT", defaultCaptureTargetCount),
		CaptureDelay:         time.Duration(getEnvIntOrDefault("CAPTURE_DELAY_MS", defaultCaptureDelayMs)) * time.Millisecond,
		Cooldown:             time.Duration(getEnvIntOrDefault("COOLDOWN_SECONDS", defaultCooldownSeconds)) * time.Second,
		MatchTolerance:       getEnvFloatOrDefault("MATCH_TOLERANCE", defaultMatchTolerance),
		SMTPHost:             getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:             getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername:         os.Getenv("SMTP_USERNAME"),
		SMTPPassword:         os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:             getEnvOrDefault("SMTP_FROM", os.Getenv("SMTP_USERNAME")),
		EmailSendTimeout:     time.Duration(getEnvIntOrDefault("EMAIL_SEND_TIMEOUT_SECONDS", defaultEmailSendTimeout)) * time.Second,
		JobQueueSize:         getEnvIntOrDefault("JOB_QUEUE_SIZE", defaultJobQueueSize),
		NumJobWorkers:        getEnvIntOrDefault("NUM_JOB_WORKERS", defaultNumJobWorkers),
		FaceDNNNetConfigPath: faceDNNConfig,
		FaceDNNNetModelPath:  faceDNNModel,
		FaceRecModelPath:     faceRecModel,
		FaceRecModelName:     faceRecName,
	}

	return cfg, nil
}
