package models

// AttendanceStatus is the recorded state of an attendance row. Only Present
// rows are ever written; absence is derived from the roster at dispatch time.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "Present"
)

// AttendanceRecord represents one committed attendance entry.
// It corresponds to the 'attendance' table. At most one record exists per
// (identity_id, date); the check lives in the repository, not the schema.
type AttendanceRecord struct {
	ID         uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	IdentityID string           `gorm:"not null;index" json:"identity_id"`
	Date       string           `gorm:"not null" json:"date"` // calendar date, YYYY-MM-DD
	Time       string           `gorm:"not null" json:"time"` // wall-clock time, HH:MM:SS
	Status     AttendanceStatus `gorm:"not null" json:"status"`

	Identity *Identity `gorm:"foreignKey:IdentityID" json:"identity,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (AttendanceRecord) TableName() string {
	return "attendance"
}
