package repository

import (
	"database/sql"
	"time"

	"github.com/shivam7053/patient-management-system/internal/domain/entity"
)

// sqliteTime renders t the way DATETIME columns are stored: UTC, second precision.
// date() in SQL then groups by the UTC calendar date.
func sqliteTime(t time.Time) string {
	return t.UTC().Format(entity.DateTimeLayout)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}
