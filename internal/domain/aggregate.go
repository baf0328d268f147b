package domain

import (
	"sort"
	"time"
)

// TopN is the length of the neighborhood and category rankings.
const TopN = 10

// MonthCount is one point of the monthly series.
type MonthCount struct {
	Month time.Time `json:"month"`
	Count int       `json:"count"`
}

// LabelCount is one entry of a ranking.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// HourWeekdayCount is one cell of the hour-by-weekday matrix.
type HourWeekdayCount struct {
	Weekday string `json:"weekday"`
	Hour    int    `json:"hour"`
	Count   int    `json:"count"`
}

type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

type WeekdayCount struct {
	Weekday string `json:"weekday"`
	Count   int    `json:"count"`
}

// Summary holds the scalar figures of a view.
type Summary struct {
	Total         int     `json:"total"`
	AveragePerDay float64 `json:"average_per_day"`
	Neighborhoods int     `json:"neighborhoods"`
}

// View is the full set of projections computed from one filtered subset.
type View struct {
	Summary          Summary            `json:"summary"`
	Monthly          []MonthCount       `json:"monthly"`
	TopNeighborhoods []LabelCount       `json:"top_neighborhoods"`
	TopCategories    []LabelCount       `json:"top_categories"`
	HourWeekday      []HourWeekdayCount `json:"hour_weekday"`
	Hourly           []HourCount        `json:"hourly"`
	Weekdays         []WeekdayCount     `json:"weekdays"`
}

// Aggregate computes every projection from records. Each projection is
// derived from records directly except the hour and weekday marginals, which
// are sums over the matrix.
func Aggregate(records []Incident) View {
	matrix := HourWeekdayMatrix(records)
	return View{
		Summary:          Summarize(records),
		Monthly:          MonthlySeries(records),
		TopNeighborhoods: TopCounts(records, func(inc *Incident) string { return inc.Neighborhood }, TopN),
		TopCategories:    TopCounts(records, func(inc *Incident) string { return inc.Category }, TopN),
		HourWeekday:      matrix,
		Hourly:           HourTotals(matrix),
		Weekdays:         WeekdayTotals(matrix),
	}
}

// MonthlySeries counts records per month in chronological order.
func MonthlySeries(records []Incident) []MonthCount {
	counts := map[time.Time]int{}
	for i := range records {
		counts[records[i].Month]++
	}

	out := make([]MonthCount, 0, len(counts))
	for m, c := range counts {
		out = append(out, MonthCount{Month: m, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// TopCounts ranks the values returned by key by descending count and keeps
// the first n. Ties keep the order in which values were first seen.
func TopCounts(records []Incident, key func(*Incident) string, n int) []LabelCount {
	index := map[string]int{}
	ranked := make([]LabelCount, 0)
	for i := range records {
		label := key(&records[i])
		pos, ok := index[label]
		if !ok {
			pos = len(ranked)
			index[label] = pos
			ranked = append(ranked, LabelCount{Label: label})
		}
		ranked[pos].Count++
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// HourWeekdayMatrix counts records for every (weekday, hour) pair present,
// ordered by canonical weekday and then hour. Records without an hour are
// left out.
func HourWeekdayMatrix(records []Incident) []HourWeekdayCount {
	type cell struct {
		weekday string
		hour    int
	}
	counts := map[cell]int{}
	for i := range records {
		if records[i].Hour == nil {
			continue
		}
		counts[cell{records[i].Weekday, *records[i].Hour}]++
	}

	out := make([]HourWeekdayCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, HourWeekdayCount{Weekday: c.weekday, Hour: c.hour, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		wi, wj := weekdayIndex(out[i].Weekday), weekdayIndex(out[j].Weekday)
		if wi != wj {
			return wi < wj
		}
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

// HourTotals sums the matrix per hour, ascending.
func HourTotals(matrix []HourWeekdayCount) []HourCount {
	var totals [maxHour + 1]int
	seen := [maxHour + 1]bool{}
	for _, c := range matrix {
		totals[c.Hour] += c.Count
		seen[c.Hour] = true
	}

	out := make([]HourCount, 0)
	for h := range totals {
		if seen[h] {
			out = append(out, HourCount{Hour: h, Count: totals[h]})
		}
	}
	return out
}

// WeekdayTotals sums the matrix per weekday in canonical order.
func WeekdayTotals(matrix []HourWeekdayCount) []WeekdayCount {
	out := make([]WeekdayCount, 0)
	index := map[string]int{}
	// The matrix is already in canonical weekday order.
	for _, c := range matrix {
		pos, ok := index[c.Weekday]
		if !ok {
			pos = len(out)
			index[c.Weekday] = pos
			out = append(out, WeekdayCount{Weekday: c.Weekday})
		}
		out[pos].Count += c.Count
	}
	return out
}

// Summarize computes the scalar figures. The average is taken over the
// calendar days between the earliest and latest incident date, inclusive.
func Summarize(records []Incident) Summary {
	if len(records) == 0 {
		return Summary{}
	}

	minDate, maxDate := records[0].OccurredDate, records[0].OccurredDate
	neighborhoods := map[string]struct{}{}
	for i := range records {
		d := records[i].OccurredDate
		if d.Before(minDate) {
			minDate = d
		}
		if d.After(maxDate) {
			maxDate = d
		}
		neighborhoods[records[i].Neighborhood] = struct{}{}
	}

	spanDays := int(maxDate.Sub(minDate).Hours()/24) + 1
	spanDays = max(spanDays, 1)

	return Summary{
		Total:         len(records),
		AveragePerDay: float64(len(records)) / float64(spanDays),
		Neighborhoods: len(neighborhoods),
	}
}
