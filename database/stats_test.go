package database

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

func setupStatsDB(t *testing.T) *gorm.DB {
	t.Helper()
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

func seedIdentity(t *testing.T, db *gorm.DB, id, name string, role models.Role) {
	t.Helper()
	require.NoError(t, db.Create(&models.Identity{ID: id, Name: name, Role: role}).Error)
}

func seedAttendance(t *testing.T, db *gorm.DB, identityID, date string) {
	t.Helper()
	require.NoError(t, db.Create(&models.AttendanceRecord{
		IdentityID: identityID,
		Date:       date,
		Time:       "09:00:00",
		Status:     models.StatusPresent,
	}).Error)
}

func TestCountDistinctClassDays(t *testing.T) {
	db := setupStatsDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	count, err := CountDistinctClassDays(sqlDB)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	seedIdentity(t, db, "1", "Alice", models.RoleStudent)
	seedAttendance(t, db, "1", "2026-08-27")
	seedAttendance(t, db, "1", "2026-08-28")

	count, err = CountDistinctClassDays(sqlDB)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestGetAttendanceStats(t *testing.T) {
	db := setupStatsDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	seedIdentity(t, db, "1", "Alice", models.RoleStudent)
	seedIdentity(t, db, "2", "Bob", models.RoleStudent)
	seedIdentity(t, db, "9", "Mr. Smith", models.RoleTeacher)

	t.Run("no class days reports zero percent, not a division error", func(t *testing.T) {
		stats, err := GetAttendanceStats(sqlDB)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		for _, s := range stats {
			assert.Equal(t, 1, s.TotalClasses)
			assert.Equal(t, 0, s.Present)
			assert.Equal(t, 0.0, s.Percentage)
		}
	})

	t.Run("percentage over distinct class days", func(t *testing.T) {
		// three class days; Alice present on all three, Bob on one
		seedAttendance(t, db, "1", "2026-08-26")
		seedAttendance(t, db, "1", "2026-08-27")
		seedAttendance(t, db, "1", "2026-08-28")
		seedAttendance(t, db, "2", "2026-08-27")

		stats, err := GetAttendanceStats(sqlDB)
		require.NoError(t, err)
		require.Len(t, stats, 2)

		assert.Equal(t, "Alice", stats[0].Name)
		assert.Equal(t, 3, stats[0].TotalClasses)
		assert.Equal(t, 3, stats[0].Present)
		assert.Equal(t, 100.0, stats[0].Percentage)

		assert.Equal(t, "Bob", stats[1].Name)
		assert.Equal(t, 1, stats[1].Present)
		assert.Equal(t, 33.33, stats[1].Percentage)
	})

	t.Run("teachers are excluded from the roster", func(t *testing.T) {
		stats, err := GetAttendanceStats(sqlDB)
		require.NoError(t, err)
		for _, s := range stats {
			assert.NotEqual(t, "9", s.IdentityID)
		}
	})
}
