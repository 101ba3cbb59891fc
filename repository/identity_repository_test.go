package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/camden-git/smartguardbackend/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// a named in-memory database keeps every pooled connection on the same
	// store while isolating tests from each other
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Identity{}, &models.AttendanceRecord{}))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func strPtr(s string) *string { return &s }

func TestIdentityRepositoryCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIdentityRepository(db)

	t.Run("creates and retrieves", func(t *testing.T) {
		identity := &models.Identity{
			ID:            "7",
			Name:          "Alice",
			Role:          models.RoleStudent,
			GuardianEmail: strPtr("guardian@example.com"),
		}
		require.NoError(t, repo.Create(identity))
		assert.NotZero(t, identity.CreatedAt)

		got, err := repo.GetByID("7")
		require.NoError(t, err)
		assert.Equal(t, "Alice", got.Name)
		assert.Equal(t, models.RoleStudent, got.Role)
		require.NotNil(t, got.GuardianEmail)
		assert.Equal(t, "guardian@example.com", *got.GuardianEmail)
	})

	t.Run("duplicate id yields ErrIdentityExists", func(t *testing.T) {
		err := repo.Create(&models.Identity{ID: "7", Name: "Someone Else", Role: models.RoleStudent})
		assert.ErrorIs(t, err, ErrIdentityExists)
	})

	t.Run("missing id yields record not found", func(t *testing.T) {
		_, err := repo.GetByID("nope")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestIdentityRepositoryListStudents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIdentityRepository(db)

	require.NoError(t, repo.Create(&models.Identity{ID: "1", Name: "Alice", Role: models.RoleStudent}))
	require.NoError(t, repo.Create(&models.Identity{ID: "2", Name: "Mr. Smith", Role: models.RoleTeacher}))
	require.NoError(t, repo.Create(&models.Identity{ID: "3", Name: "Bob", Role: models.RoleStudent}))

	students, err := repo.ListStudents()
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Alice", students[0].Name)
	assert.Equal(t, "Bob", students[1].Name)

	all, err := repo.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestIdentityRepositoryDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIdentityRepository(db)
	attRepo := NewAttendanceRepository(db)

	require.NoError(t, repo.Create(&models.Identity{ID: "9", Name: "Carol", Role: models.RoleStudent}))
	require.NoError(t, attRepo.Mark("9"))

	t.Run("removes identity and attendance history", func(t *testing.T) {
		require.NoError(t, repo.Delete("9"))

		_, err := repo.GetByID("9")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

		records, err := attRepo.ListByIdentity("9")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("deleting a missing identity yields record not found", func(t *testing.T) {
		assert.ErrorIs(t, repo.Delete("9"), gorm.ErrRecordNotFound)
	})
}

func TestIdentityRepositorySetAvatarPath(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIdentityRepository(db)

	require.NoError(t, repo.Create(&models.Identity{ID: "4", Name: "Dan", Role: models.RoleStudent}))

	require.NoError(t, repo.SetAvatarPath("4", strPtr("avatars/abc.jpg")))
	got, err := repo.GetByID("4")
	require.NoError(t, err)
	require.NotNil(t, got.AvatarPath)
	assert.Equal(t, "avatars/abc.jpg", *got.AvatarPath)

	assert.ErrorIs(t, repo.SetAvatarPath("missing", nil), gorm.ErrRecordNotFound)
}
