package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/camden-git/smartguardbackend/models"
	"gorm.io/gorm"
)

// ErrAlreadyMarked is returned by Mark when the identity already has an
// attendance record for today.
var ErrAlreadyMarked = errors.New("attendance already marked for today")

// AttendanceRepository handles database operations for AttendanceRecord entities
type AttendanceRepository struct {
	DB *gorm.DB

	// Now is swappable for tests; defaults to time.Now
	Now func() time.Time
}

var _ AttendanceRepositoryInterface = (*AttendanceRepository)(nil)

// NewAttendanceRepository creates a new instance of AttendanceRepository
func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{DB: db, Now: time.Now}
}

// Mark writes a Present record for today. The duplicate guard is a
// check-then-insert, not a schema constraint; the single detection-loop
// consumer keeps it race-free in practice.
func (r *AttendanceRepository) Mark(identityID string) error {
	now := r.Now()
	dateStr := now.Format("2006-01-02")
	timeStr := now.Format("15:04:05")

	marked, err := r.IsMarkedOn(identityID, dateStr)
	if err != nil {
		return err
	}
	if marked {
		return ErrAlreadyMarked
	}

	record := models.AttendanceRecord{
		IdentityID: identityID,
		Date:       dateStr,
		Time:       timeStr,
		Status:     models.StatusPresent,
	}
	if err := r.DB.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to mark attendance for identity %s: %w", identityID, err)
	}
	return nil
}

// IsMarkedOn reports whether the identity has an attendance record on the
// given calendar date (YYYY-MM-DD).
func (r *AttendanceRepository) IsMarkedOn(identityID, date string) (bool, error) {
	var count int64
	err := r.DB.Model(&models.AttendanceRecord{}).
		Where("identity_id = ? AND date = ?", identityID, date).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check attendance for identity %s on %s: %w", identityID, date, err)
	}
	return count > 0, nil
}

// ListByIdentity retrieves all attendance records for an identity, newest first
func (r *AttendanceRepository) ListByIdentity(identityID string) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := r.DB.Where("identity_id = ?", identityID).
		Order("date DESC, time DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance for identity %s: %w", identityID, err)
	}
	return records, nil
}
