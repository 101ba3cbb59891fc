package handlers

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/facette/natsort"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/camden-git/smartguardbackend/catalog"
	"github.com/camden-git/smartguardbackend/repository"
	"github.com/camden-git/smartguardbackend/utils"
)

// PhotoHandler lists an identity's dataset photos with basic metadata.
type PhotoHandler struct {
	IdentityRepo repository.IdentityRepositoryInterface
	DatasetPath  string
}

type photoInfo struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Width     *int   `json:"width,omitempty"`
	Height    *int   `json:"height,omitempty"`
	TakenAt   *int64 `json:"taken_at,omitempty"`
}

func (ph *PhotoHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identity_id")
	identity, err := ph.IdentityRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Identity not found"})
			return
		}
		log.Printf("Error fetching identity %s for photo listing: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve identity"})
		return
	}

	label := catalog.Label{IdentityID: identity.ID, DisplayName: identity.Name}
	dirPath := filepath.Join(ph.DatasetPath, label.String())

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, []photoInfo{})
			return
		}
		log.Printf("Error reading dataset directory %s: %v", dirPath, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read dataset directory"})
		return
	}

	var filenames []string
	for _, entry := range entries {
		if !entry.IsDir() && utils.IsRasterImage(entry.Name()) {
			filenames = append(filenames, entry.Name())
		}
	}
	natsort.Sort(filenames)

	photos := make([]photoInfo, 0, len(filenames))
	for _, name := range filenames {
		fullPath := filepath.Join(dirPath, name)
		info := photoInfo{Filename: name}

		if stat, err := os.Stat(fullPath); err == nil {
			info.SizeBytes = stat.Size()
		}
		if meta, err := utils.GetImageMetadata(fullPath); err == nil {
			info.Width = meta.Width
			info.Height = meta.Height
			info.TakenAt = meta.TakenAt
		}
		photos = append(photos, info)
	}

	writeJSON(w, http.StatusOK, photos)
}
