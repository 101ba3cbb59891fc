package enrollment

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/facette/natsort"
	"gocv.io/x/gocv"
	"gorm.io/gorm"

	"github.com/camden-git/smartguardbackend/catalog"
	"github.com/camden-git/smartguardbackend/media"
	"github.com/camden-git/smartguardbackend/repository"
	"github.com/camden-git/smartguardbackend/utils"
)

// ModelPaths locates the detection and recognition networks on disk.
type ModelPaths struct {
	DetectorConfigPath  string
	DetectorModelPath   string
	RecognizerModelPath string
	RecognizerModelName string
}

// Encoder rebuilds the face catalog from the photo dataset. Every run is a
// full re-scan; the previous catalog is replaced wholesale. A dnn net does
// not tolerate concurrent forward passes, so each run loads its own network
// instances instead of sharing the detection loop's.
type Encoder struct {
	datasetPath   string
	avatarDir     string
	avatarMaxSize int

	models       ModelPaths
	catalog      *catalog.Catalog
	identityRepo repository.IdentityRepositoryInterface
}

// NewEncoder creates a dataset encoder.
func NewEncoder(
	datasetPath, avatarDir string,
	avatarMaxSize int,
	models ModelPaths,
	cat *catalog.Catalog,
	identityRepo repository.IdentityRepositoryInterface,
) *Encoder {
	return &Encoder{
		datasetPath:   datasetPath,
		avatarDir:     avatarDir,
		avatarMaxSize: avatarMaxSize,
		models:        models,
		catalog:       cat,
		identityRepo:  identityRepo,
	}
}

// Run scans every "<id>_<name>" directory under the dataset root, extracts
// one embedding per photo with a detectable face, and saves the resulting
// set as the new catalog. Directories with malformed names are skipped with
// a warning; photos with no detectable face are skipped silently.
func (e *Encoder) Run() error {
	entries, err := os.ReadDir(e.datasetPath)
	if err != nil {
		return fmt.Errorf("failed to read dataset directory %s: %w", e.datasetPath, err)
	}

	detector := media.NewFaceDetector(e.models.DetectorConfigPath, e.models.DetectorModelPath)
	defer detector.Close()
	recognizer := media.NewFaceRecognitionModel(e.models.RecognizerModelPath, e.models.RecognizerModelName)
	defer recognizer.Close()

	var vectors [][]float32
	var labels []catalog.Label

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		label, err := catalog.ParseDirName(entry.Name())
		if err != nil {
			log.Printf("enrollment: skipping dataset directory: %v", err)
			continue
		}

		dirPath := filepath.Join(e.datasetPath, entry.Name())
		encoded, vecs := e.encodeDirectory(dirPath, detector, recognizer)
		for range vecs {
			labels = append(labels, label)
		}
		vectors = append(vectors, vecs...)

		log.Printf("enrollment: %s: %d/%d photos encoded", entry.Name(), len(vecs), encoded)

		if err := e.ensureAvatar(label, dirPath); err != nil {
			log.Printf("enrollment: avatar for %s: %v", label.IdentityID, err)
		}
	}

	if err := e.catalog.Save(vectors, labels); err != nil {
		return fmt.Errorf("failed to save catalog: %w", err)
	}
	log.Printf("enrollment: catalog rebuilt with %d encodings", len(vectors))
	return nil
}

// encodeDirectory returns the number of photos inspected and one embedding
// per photo where at least one face was found; only the first face per photo
// contributes.
func (e *Encoder) encodeDirectory(dirPath string, detector *media.FaceDetector, recognizer *media.FaceRecognitionModel) (int, [][]float32) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		log.Printf("enrollment: failed to read %s: %v", dirPath, err)
		return 0, nil
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && utils.IsRasterImage(entry.Name()) {
			files = append(files, entry.Name())
		}
	}
	natsort.Sort(files)

	var vecs [][]float32
	for _, name := range files {
		path := filepath.Join(dirPath, name)
		img := gocv.IMRead(path, gocv.IMReadColor)
		if img.Empty() {
			img.Close()
			log.Printf("enrollment: failed to read image %s", path)
			continue
		}

		detections := detector.DetectFacesAndExtractEmbeddings(img, recognizer)
		img.Close()

		for _, det := range detections {
			if det.Embedding != nil {
				vecs = append(vecs, det.Embedding)
				break
			}
		}
	}
	return len(files), vecs
}

// ensureAvatar generates an avatar from the identity's first dataset photo
// when the identity exists and has none yet.
func (e *Encoder) ensureAvatar(label catalog.Label, dirPath string) error {
	identity, err := e.identityRepo.GetByID(label.IdentityID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if identity.AvatarPath != nil {
		return nil
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && utils.IsRasterImage(entry.Name()) {
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		return nil
	}
	natsort.Sort(files)

	avatarPath, err := utils.GenerateAvatar(filepath.Join(dirPath, files[0]), e.avatarDir, e.avatarMaxSize)
	if err != nil {
		return err
	}

	// store the path relative to the media root so the asset route can serve it
	relPath := filepath.Join(filepath.Base(e.avatarDir), filepath.Base(avatarPath))
	return e.identityRepo.SetAvatarPath(label.IdentityID, &relPath)
}
