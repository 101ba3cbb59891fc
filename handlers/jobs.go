package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/smartguardbackend/workers"
)

// JobHandler lets clients poll the outcome of background jobs.
type JobHandler struct {
	Runner *workers.Runner
}

func (jh *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	info, ok := jh.Runner.Status(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Job not found"})
		return
	}
	writeJSON(w, http.StatusOK, info)
}
