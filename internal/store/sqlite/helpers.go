package sqlite

import (
	"database/sql"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
	"github.com/GoSim-25-26J-441/topology-core/pkg/utils"
)

// application rebuilds an application from its stored name and type code
func (s *Store) application(name string, code int16) models.Application {
	return models.NewApplication(name, s.catalog.Resolve(code))
}

// histogramColumns lists the bucket columns in scan order
func histogramColumns(h *histogram.Histogram) []any {
	return []any{&h.Fast, &h.Normal, &h.Slow, &h.VerySlow, &h.Error}
}

// timeToMs stores zero times as 0
func timeToMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return utils.UnixMs(t)
}

func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return utils.FromUnixMs(ms)
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
