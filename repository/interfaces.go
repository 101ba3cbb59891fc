package repository

import (
	"github.com/camden-git/smartguardbackend/models"
)

// IdentityRepositoryInterface defines the methods for identity data operations
type IdentityRepositoryInterface interface {
	Create(identity *models.Identity) error
	GetByID(id string) (*models.Identity, error)
	ListAll() ([]models.Identity, error)
	ListStudents() ([]models.Identity, error)
	Delete(id string) error
	SetAvatarPath(id string, avatarPath *string) error
}

// AttendanceRepositoryInterface defines the methods for attendance data operations
type AttendanceRepositoryInterface interface {
	Mark(identityID string) error
	IsMarkedOn(identityID, date string) (bool, error)
	ListByIdentity(identityID string) ([]models.AttendanceRecord, error)
}
