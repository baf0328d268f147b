package domain

import (
	"fmt"
	"time"
)

// RawIncident is a source row after field renaming but before any parsing.
// Every value is kept exactly as the source sent it.
type RawIncident struct {
	IncidentDate     string
	IncidentDatetime string
	Neighborhood     string
	Category         string
	DayOfWeek        string
	Latitude         string
	Longitude        string
}

// Incident is a normalized incident report.
type Incident struct {
	ID           string     `json:"id"`
	OccurredDate time.Time  `json:"occurred_date"`
	OccurredAt   *time.Time `json:"occurred_at,omitempty"`
	Neighborhood string     `json:"neighborhood"`
	Category     string     `json:"category"`
	Weekday      string     `json:"weekday"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`

	// Derived fields.
	Year  int       `json:"year"`
	Month time.Time `json:"month"`
	Hour  *int      `json:"hour,omitempty"`
}

// Scope is the inclusive date window ingestion is restricted to.
type Scope struct {
	Start time.Time
	End   time.Time
}

// DefaultScope covers calendar years 2018 through 2025.
func DefaultScope() Scope {
	return Scope{
		Start: time.Date(2018, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

func (s Scope) StartYear() int { return s.Start.Year() }
func (s Scope) EndYear() int   { return s.End.Year() }

// ContainsYear reports whether year lies within the scope's calendar years.
func (s Scope) ContainsYear(year int) bool {
	return year >= s.StartYear() && year <= s.EndYear()
}

func (s Scope) String() string {
	return fmt.Sprintf("%s..%s", s.Start.Format(time.DateOnly), s.End.Format(time.DateOnly))
}

// DropReason names why a record was excluded during normalization.
type DropReason string

const (
	DropMissingDate         DropReason = "missing_date"
	DropMissingNeighborhood DropReason = "missing_neighborhood"
	DropMissingCategory     DropReason = "missing_category"
	DropOutOfScope          DropReason = "out_of_scope"
)

// DropCounts tallies excluded records by reason.
type DropCounts map[DropReason]int

// Total returns the number of excluded records.
func (d DropCounts) Total() int {
	n := 0
	for _, c := range d {
		n += c
	}
	return n
}

// Snapshot is the result of one ingestion run. It is shared between
// concurrent readers and must not be mutated after construction.
type Snapshot struct {
	ID        string
	Source    string
	Scope     Scope
	FetchedAt time.Time

	Incidents []Incident
	Fetched   int
	Dropped   DropCounts

	// UnknownNeighborhoods counts retained records whose neighborhood is not
	// one of the 41 Analysis Neighborhoods.
	UnknownNeighborhoods int
}
