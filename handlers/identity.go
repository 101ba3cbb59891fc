package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/camden-git/smartguardbackend/attendance"
	"github.com/camden-git/smartguardbackend/camera"
	"github.com/camden-git/smartguardbackend/catalog"
	"github.com/camden-git/smartguardbackend/enrollment"
	"github.com/camden-git/smartguardbackend/models"
	"github.com/camden-git/smartguardbackend/repository"
	"github.com/camden-git/smartguardbackend/utils"
	"github.com/camden-git/smartguardbackend/workers"
)

// IdentityHandler exposes identity CRUD and the enrollment capture flow.
type IdentityHandler struct {
	IdentityRepo   repository.IdentityRepositoryInterface
	AttendanceRepo repository.AttendanceRepositoryInterface
	Controller     *attendance.Controller
	Camera         *camera.Service
	Encoder        *enrollment.Encoder
	Runner         *workers.Runner
	DatasetPath    string
	CaptureCount   int
}

type createIdentityRequest struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	StudentEmail  *string `json:"student_email"`
	GuardianEmail *string `json:"guardian_email"`
}

func (ih *IdentityHandler) CreateIdentity(w http.ResponseWriter, r *http.Request) {
	var req createIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields: id, name"})
		return
	}
	if strings.Contains(req.ID, "_") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Identity ID must not contain underscores"})
		return
	}

	role := models.Role(req.Role)
	if role != models.RoleStudent && role != models.RoleTeacher {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Role must be Student or Teacher"})
		return
	}

	identity := &models.Identity{
		ID:            req.ID,
		Name:          req.Name,
		Role:          role,
		StudentEmail:  req.StudentEmail,
		GuardianEmail: req.GuardianEmail,
	}
	if err := ih.IdentityRepo.Create(identity); err != nil {
		if errors.Is(err, repository.ErrIdentityExists) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "An identity with this ID already exists"})
			return
		}
		log.Printf("Error creating identity %s: %v", req.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create identity"})
		return
	}

	if err := ih.Controller.RefreshRoleIndex(); err != nil {
		log.Printf("Error refreshing role index after create: %v", err)
	}

	writeJSON(w, http.StatusCreated, identity)
}

func (ih *IdentityHandler) ListIdentities(w http.ResponseWriter, r *http.Request) {
	identities, err := ih.IdentityRepo.ListAll()
	if err != nil {
		log.Printf("Error listing identities: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve identities"})
		return
	}
	if identities == nil {
		identities = []models.Identity{}
	}
	writeJSON(w, http.StatusOK, identities)
}

func (ih *IdentityHandler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identity_id")
	identity, err := ih.IdentityRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Identity not found"})
			return
		}
		log.Printf("Error fetching identity %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve identity"})
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// DeleteIdentity removes the identity and its attendance rows. Dataset
// photos stay on disk until the next enrollment run re-scans without them.
func (ih *IdentityHandler) DeleteIdentity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identity_id")
	if err := ih.IdentityRepo.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Identity not found"})
			return
		}
		log.Printf("Error deleting identity %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete identity"})
		return
	}

	if err := ih.Controller.RefreshRoleIndex(); err != nil {
		log.Printf("Error refreshing role index after delete: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Identity deleted"})
}

// ListAttendance returns the identity's full attendance history.
func (ih *IdentityHandler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identity_id")
	if _, err := ih.IdentityRepo.GetByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Identity not found"})
			return
		}
		log.Printf("Error fetching identity %s for attendance listing: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve identity"})
		return
	}

	records, err := ih.AttendanceRepo.ListByIdentity(id)
	if err != nil {
		log.Printf("Error listing attendance for %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve attendance"})
		return
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// StartCapture begins a camera capture session into the identity's dataset
// directory and chains an enrollment job once the target frame count is
// reached.
func (ih *IdentityHandler) StartCapture(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identity_id")
	identity, err := ih.IdentityRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Identity not found"})
			return
		}
		log.Printf("Error fetching identity %s for capture: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve identity"})
		return
	}

	label := catalog.Label{IdentityID: identity.ID, DisplayName: identity.Name}
	folder := filepath.Join(ih.DatasetPath, label.String())
	if err := utils.EnsureDir(folder); err != nil {
		log.Printf("Error creating dataset folder %s: %v", folder, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create dataset folder"})
		return
	}

	err = ih.Camera.StartCaptureSession(folder, ih.CaptureCount, func() {
		if err := ih.Camera.SetMode(camera.ModeAttendance); err != nil {
			log.Printf("Error restoring attendance mode after capture: %v", err)
		}
		jobID, err := ih.Runner.Enqueue(workers.JobTraining, "training", ih.Encoder.Run)
		if err != nil {
			log.Printf("Error enqueueing training job after capture for %s: %v", id, err)
			return
		}
		log.Printf("capture complete for %s, training job %s enqueued", id, jobID)
	})
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":      fmt.Sprintf("Capture session started for %s", identity.Name),
		"folder":       folder,
		"target_count": ih.CaptureCount,
	})
}

// Retrain triggers a full dataset re-scan without a capture session, for
// photos added to the dataset out of band.
func (ih *IdentityHandler) Retrain(w http.ResponseWriter, r *http.Request) {
	jobID, err := ih.Runner.Enqueue(workers.JobTraining, "training", ih.Encoder.Run)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}
