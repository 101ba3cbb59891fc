package utils

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Metadata carries the photo attributes the dataset listing surfaces.
type Metadata struct {
	Width   *int   `json:"width,omitempty"`
	Height  *int   `json:"height,omitempty"`
	TakenAt *int64 `json:"taken_at,omitempty"`
}

// GetImageMetadata extracts dimensions and capture time from a photo.
// Dimensions come from the image header; TakenAt from EXIF when present.
func GetImageMetadata(filePath string) (*Metadata, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	meta := &Metadata{}

	config, _, err := image.DecodeConfig(file)
	if err == nil {
		w, h := config.Width, config.Height
		meta.Width = &w
		meta.Height = &h
	}

	if _, err := file.Seek(0, 0); err != nil {
		return meta, nil
	}

	exifData, err := exif.Decode(file)
	if err != nil {
		// webcam captures rarely carry EXIF; dimensions alone are fine
		return meta, nil
	}

	if tag, err := exifData.Get(exif.DateTimeOriginal); err == nil && tag != nil {
		if raw, err := tag.StringVal(); err == nil {
			if t, err := time.Parse("2006:01:02 15:04:05", raw); err == nil {
				ts := t.Unix()
				meta.TakenAt = &ts
			}
		}
	}

	return meta, nil
}
