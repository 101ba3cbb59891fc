package handlers

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/camden-git/smartguardbackend/database"
)

// StatsHandler serves the per-student attendance aggregates.
type StatsHandler struct {
	DB *sql.DB
}

func (sh *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := database.GetAttendanceStats(sh.DB)
	if err != nil {
		log.Printf("Error computing attendance stats: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to compute attendance stats"})
		return
	}
	if stats == nil {
		stats = []database.IdentityStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}
