package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/camden-git/smartguardbackend/attendance"
	"github.com/camden-git/smartguardbackend/camera"
)

// CameraHandler exposes the live annotated frame and mode control.
type CameraHandler struct {
	Camera     *camera.Service
	Controller *attendance.Controller
}

// GetFrame serves the latest annotated frame as a JPEG snapshot. Clients
// poll this; there is no streaming endpoint.
func (ch *CameraHandler) GetFrame(w http.ResponseWriter, r *http.Request) {
	frame := ch.Camera.GetFrame()
	if frame == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "No frame available yet"})
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frame)
}

func (ch *CameraHandler) GetMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(ch.Camera.CurrentMode())})
}

func (ch *CameraHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := ch.Camera.SetMode(camera.Mode(req.Mode)); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": req.Mode})
}

// GetPending lists identities detected this session and awaiting a teacher
// commit.
func (ch *CameraHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"pending": ch.Controller.PendingIDs()})
}
