package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05"

// Header is the column order of the normalized export.
var Header = []string{
	domain.FieldOccurredDate,
	domain.FieldOccurredAt,
	domain.FieldNeighborhood,
	domain.FieldCategory,
	domain.FieldWeekday,
	domain.FieldLatitude,
	domain.FieldLongitude,
	"year",
	"month",
	"hour",
}

// WriteIncidents writes incidents in the normalized export layout. Absent
// optional values are written as empty cells.
func WriteIncidents(w io.Writer, incidents []domain.Incident) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(Header))
	for i := range incidents {
		inc := &incidents[i]
		row[0] = inc.OccurredDate.Format(time.DateOnly)
		row[1] = ""
		if inc.OccurredAt != nil {
			row[1] = inc.OccurredAt.Format(timestampLayout)
		}
		row[2] = inc.Neighborhood
		row[3] = inc.Category
		row[4] = inc.Weekday
		row[5] = formatOptionalFloat(inc.Latitude)
		row[6] = formatOptionalFloat(inc.Longitude)
		row[7] = strconv.Itoa(inc.Year)
		row[8] = inc.Month.Format("2006-01")
		row[9] = ""
		if inc.Hour != nil {
			row[9] = strconv.Itoa(*inc.Hour)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
