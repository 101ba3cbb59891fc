package database

import (
	"database/sql"
	"fmt"
	"math"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// IdentityStats holds per-student attendance aggregates for the dashboard.
type IdentityStats struct {
	IdentityID   string  `json:"id"`
	Name         string  `json:"name"`
	TotalClasses int     `json:"total_classes"`
	Present      int     `json:"present"`
	Percentage   float64 `json:"percentage"`
}

// CountDistinctClassDays returns the number of distinct dates on which any
// attendance was recorded. A day with at least one record counts as a class
// day for every student.
func CountDistinctClassDays(db *sql.DB) (int, error) {
	queryBuilder := psql.Select("COUNT(DISTINCT date)").From("attendance")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for CountDistinctClassDays: %w", err)
	}

	var count int
	if err := db.QueryRow(sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count distinct class days: %w", err)
	}
	return count, nil
}

// GetAttendanceStats computes the per-student attendance percentage over all
// recorded class days. When no class days exist yet the denominator defaults
// to 1, so every student reports 0% rather than a division error.
func GetAttendanceStats(db *sql.DB) ([]IdentityStats, error) {
	totalClasses, err := CountDistinctClassDays(db)
	if err != nil {
		return nil, err
	}
	if totalClasses == 0 {
		totalClasses = 1
	}

	presentCounts, err := getPresentCounts(db)
	if err != nil {
		return nil, err
	}

	queryBuilder := psql.Select("id", "name").
		From("identities").
		Where(sq.Eq{"role": "Student"}).
		OrderBy("id ASC")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetAttendanceStats: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query student roster for stats: %w", err)
	}
	defer rows.Close()

	var stats []IdentityStats
	for rows.Next() {
		var s IdentityStats
		if err := rows.Scan(&s.IdentityID, &s.Name); err != nil {
			return nil, fmt.Errorf("failed to scan student row for stats: %w", err)
		}
		s.TotalClasses = totalClasses
		s.Present = presentCounts[s.IdentityID]
		s.Percentage = roundPercent(float64(s.Present) / float64(totalClasses) * 100)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating student rows for stats: %w", err)
	}

	return stats, nil
}

func getPresentCounts(db *sql.DB) (map[string]int, error) {
	queryBuilder := psql.Select("identity_id", "COUNT(*)").
		From("attendance").
		Where(sq.Eq{"status": "Present"}).
		GroupBy("identity_id")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for present counts: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query present counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("failed to scan present count row: %w", err)
		}
		counts[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating present count rows: %w", err)
	}

	return counts, nil
}

func roundPercent(v float64) float64 {
	return math.Round(v*100) / 100
}
