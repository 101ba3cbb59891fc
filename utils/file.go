package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

var supportedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// IsRasterImage checks if the filename has a common raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}

// EnsureDir creates the directory and its parents if missing.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// GenerateAvatar resizes a source photo into an avatar with a UUID filename
// and returns the full path where the avatar was saved.
func GenerateAvatar(sourceImagePath, avatarDir string, maxSize int) (string, error) {
	if err := os.MkdirAll(avatarDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create avatar directory %s: %w", avatarDir, err)
	}

	img, err := imaging.Open(sourceImagePath)
	if err != nil {
		return "", fmt.Errorf("failed to open image %s: %w", sourceImagePath, err)
	}

	avatar := imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)

	avatarUUID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID for avatar: %w", err)
	}
	avatarPath := filepath.Join(avatarDir, avatarUUID.String()+".jpg")

	if err := imaging.Save(avatar, avatarPath, imaging.JPEGQuality(80)); err != nil {
		return "", fmt.Errorf("failed to save avatar to %s: %w", avatarPath, err)
	}
	return avatarPath, nil
}
