package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/camden-git/smartguardbackend/models"
	"gorm.io/gorm"
)

// ErrIdentityExists is returned by Create when the identity ID is already
// enrolled. Surfaced to the UI as a user-facing error.
var ErrIdentityExists = errors.New("identity id already exists")

// IdentityRepository handles database operations for Identity entities
type IdentityRepository struct {
	DB *gorm.DB
}

var _ IdentityRepositoryInterface = (*IdentityRepository)(nil)

// NewIdentityRepository creates a new instance of IdentityRepository
func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{DB: db}
}

// Create creates a new identity record in the database. A duplicate ID yields
// ErrIdentityExists rather than a storage error.
func (r *IdentityRepository) Create(identity *models.Identity) error {
	now := time.Now().Unix()
	if identity.CreatedAt == 0 {
		identity.CreatedAt = now
	}
	if identity.UpdatedAt == 0 {
		identity.UpdatedAt = now
	}

	var existing models.Identity
	err := r.DB.First(&existing, "id = ?", identity.ID).Error
	if err == nil {
		return ErrIdentityExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check for existing identity %s: %w", identity.ID, err)
	}

	if err := r.DB.Create(identity).Error; err != nil {
		return fmt.Errorf("failed to create identity %s: %w", identity.ID, err)
	}
	return nil
}

// GetByID retrieves an identity by its ID
func (r *IdentityRepository) GetByID(id string) (*models.Identity, error) {
	var identity models.Identity
	err := r.DB.First(&identity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get identity by ID %s: %w", id, err)
	}
	return &identity, nil
}

// ListAll retrieves all identities, ordered by id
func (r *IdentityRepository) ListAll() ([]models.Identity, error) {
	var identities []models.Identity
	err := r.DB.Order("id ASC").Find(&identities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	return identities, nil
}

// ListStudents retrieves all identities with the Student role, ordered by id
func (r *IdentityRepository) ListStudents() ([]models.Identity, error) {
	var students []models.Identity
	err := r.DB.Where("role = ?", models.RoleStudent).Order("id ASC").Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

// Delete removes an identity and all of its attendance history. The cascade
// is explicit so it holds even without PRAGMA foreign_keys.
func (r *IdentityRepository) Delete(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("identity_id = ?", id).Delete(&models.AttendanceRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete attendance for identity %s: %w", id, err)
		}

		result := tx.Delete(&models.Identity{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete identity %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SetAvatarPath updates the stored avatar path for an identity
func (r *IdentityRepository) SetAvatarPath(id string, avatarPath *string) error {
	result := r.DB.Model(&models.Identity{}).Where("id = ?", id).Updates(map[string]interface{}{
		"avatar_path": avatarPath,
		"updated_at":  time.Now().Unix(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to set avatar path for identity %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
