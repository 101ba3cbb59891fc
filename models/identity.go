package models

// Role classifies an enrolled identity. Only teachers can trigger an
// attendance commit; only students appear in notifications and stats.
type Role string

const (
	RoleStudent Role = "Student"
	RoleTeacher Role = "Teacher"
)

// Identity represents an enrolled person using GORM.
// It corresponds to the 'identities' table. The ID is the external key used
// by the catalog labels, the dataset directory names and the UI.
type Identity struct {
	ID            string  `gorm:"primaryKey" json:"id"`
	Name          string  `gorm:"not null" json:"name"`
	Role          Role    `gorm:"not null" json:"role"`
	StudentEmail  *string `json:"student_email,omitempty"`
	GuardianEmail *string `json:"guardian_email,omitempty"`
	AvatarPath    *string `json:"avatar_path,omitempty"`
	CreatedAt     int64   `gorm:"not null" json:"created_at"` // Stored as INTEGER in SQLite, Unix timestamp
	UpdatedAt     int64   `gorm:"not null" json:"updated_at"` // Stored as INTEGER in SQLite, Unix timestamp

	// Relationships
	Attendance []AttendanceRecord `gorm:"foreignKey:IdentityID;constraint:OnDelete:CASCADE" json:"attendance,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Identity) TableName() string {
	return "identities"
}
