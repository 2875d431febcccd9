package database

import (
	"database/sql"
	"time"

	"github.com/aimquant/aim/internal/domain"
)

// FormatDate renders a trading date as stored in every table
func FormatDate(t time.Time) string {
	return t.UTC().Format(domain.DateLayout)
}

// ParseDate parses a stored trading date
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(domain.DateLayout, s, time.UTC)
}

// NullFloat converts an optional float into a nullable column value
func NullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// FloatPtr converts a nullable column value into an optional float
func FloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
