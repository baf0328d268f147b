package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Canonical field names. These are also the column headers of the CSV export.
const (
	FieldOccurredDate = "occurred_date"
	FieldOccurredAt   = "occurred_at"
	FieldNeighborhood = "neighborhood"
	FieldCategory     = "category"
	FieldWeekday      = "weekday"
	FieldLatitude     = "latitude"
	FieldLongitude    = "longitude"
)

// fieldAliases maps source column names (lowercased, spaces as underscores)
// to canonical field names.
var fieldAliases = map[string]string{
	"incident_date":         FieldOccurredDate,
	"date":                  FieldOccurredDate,
	"occurred_date":         FieldOccurredDate,
	"incident_datetime":     FieldOccurredAt,
	"occurred_at":           FieldOccurredAt,
	"analysis_neighborhood": FieldNeighborhood,
	"neighborhood":          FieldNeighborhood,
	"incident_category":     FieldCategory,
	"category":              FieldCategory,
	"incident_day_of_week":  FieldWeekday,
	"weekday":               FieldWeekday,
	"latitude":              FieldLatitude,
	"longitude":             FieldLongitude,
}

// dateLayouts are tried in order. SODA layouts first, then the CSV export.
var dateLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	time.DateOnly,
	"2006/01/02 03:04:05 PM",
	"2006/01/02 03:04 PM",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 03:04:05 PM",
	"01/02/2006",
}

// CanonicalField maps a source column name to its canonical field name.
// It returns "" for columns that are not part of the schema.
func CanonicalField(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, " ", "_")
	return fieldAliases[key]
}

// RawIncidentFromFields builds a RawIncident from a source row keyed by
// source column name. Unknown columns are ignored.
func RawIncidentFromFields(fields map[string]string) RawIncident {
	var raw RawIncident
	for name, value := range fields {
		switch CanonicalField(name) {
		case FieldOccurredDate:
			raw.IncidentDate = value
		case FieldOccurredAt:
			raw.IncidentDatetime = value
		case FieldNeighborhood:
			raw.Neighborhood = value
		case FieldCategory:
			raw.Category = value
		case FieldWeekday:
			raw.DayOfWeek = value
		case FieldLatitude:
			raw.Latitude = value
		case FieldLongitude:
			raw.Longitude = value
		}
	}
	return raw
}

// Normalize parses, validates and scopes a batch of raw records, preserving
// input order. Records missing a required field or outside the scope's
// calendar years are counted in the returned DropCounts.
func Normalize(raws []RawIncident, scope Scope) ([]Incident, DropCounts) {
	out := make([]Incident, 0, len(raws))
	dropped := DropCounts{}

	for _, raw := range raws {
		inc, reason := NormalizeIncident(raw)
		if reason == "" && !scope.ContainsYear(inc.Year) {
			reason = DropOutOfScope
		}
		if reason != "" {
			dropped[reason]++
			continue
		}
		out = append(out, inc)
	}
	return out, dropped
}

// NormalizeIncident parses a single raw record and derives its calendar
// fields. A non-empty DropReason means a required field is absent.
func NormalizeIncident(raw RawIncident) (Incident, DropReason) {
	occurredAt, hasTime := parseTimestamp(raw.IncidentDatetime)
	occurredDate, hasDate := parseTimestamp(raw.IncidentDate)
	neighborhood := strings.TrimSpace(raw.Neighborhood)
	category := strings.TrimSpace(raw.Category)

	switch {
	case !hasDate:
		return Incident{}, DropMissingDate
	case neighborhood == "":
		return Incident{}, DropMissingNeighborhood
	case category == "":
		return Incident{}, DropMissingCategory
	}

	occurredDate = truncateToDay(occurredDate)

	inc := Incident{
		ID:           generateID(raw),
		OccurredDate: occurredDate,
		Neighborhood: neighborhood,
		Category:     category,
		Weekday:      normalizeWeekday(raw.DayOfWeek, occurredDate),
		Latitude:     parseOptionalFloat(raw.Latitude),
		Longitude:    parseOptionalFloat(raw.Longitude),
		Year:         occurredDate.Year(),
		Month:        truncateToMonth(occurredDate),
	}
	if hasTime {
		hour := occurredAt.Hour()
		inc.OccurredAt = &occurredAt
		inc.Hour = &hour
	}
	return inc, ""
}

// parseTimestamp tries each known layout. Empty or unparseable values report
// false.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseOptionalFloat parses a coordinate, returning nil for empty,
// non-numeric or non-finite values.
func parseOptionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// normalizeWeekday returns the canonical spelling of the reported weekday, or
// the weekday of the incident date when the reported value is unrecognized.
func normalizeWeekday(reported string, date time.Time) string {
	if name, ok := CanonicalWeekday(reported); ok {
		return name
	}
	return date.Weekday().String()
}

// generateID produces a deterministic ID from the record's source values, so
// re-ingesting the same row yields the same key downstream.
func generateID(raw RawIncident) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		strings.TrimSpace(raw.IncidentDate),
		strings.TrimSpace(raw.IncidentDatetime),
		strings.TrimSpace(raw.Neighborhood),
		strings.TrimSpace(raw.Category),
		strings.TrimSpace(raw.Latitude),
		strings.TrimSpace(raw.Longitude),
	)
	hash := sha256.Sum256([]byte(input))
	return "inc-" + hex.EncodeToString(hash[:8])
}
