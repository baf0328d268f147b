// Command validate runs an incident extract through ingestion, filtering,
// aggregation, export and forecasting, and checks the invariants each stage
// promises. It is the offline acceptance check for a CSV extract, such as
// one written by genmock or downloaded from DataSF.
//
// Usage:
//
//	go run ./cmd/validate -file data/mock/incidents.csv
package main

import (
	"bytes"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/google/go-cmp/cmp"

	"github.com/couchcryptid/sf-incident-analytics/internal/adapter/csvfile"
	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
	"github.com/couchcryptid/sf-incident-analytics/internal/forecast"
)

// maxErrorsPerPhase caps the detail printed for a failing phase.
const maxErrorsPerPhase = 25

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	file := flag.String("file", "", "path to the incident CSV extract")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*file); code != 0 {
		os.Exit(code)
	}
}

func run(path string) int {
	fmt.Println("=== Incident Extract Validation ===")
	fmt.Println()

	raws, err := loadExtract(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load extract: %v\n", err)
		return 1
	}

	scope := domain.DefaultScope()
	incidents, dropped := domain.Normalize(raws, scope)

	phases := []*phase{
		validateNormalization(raws, incidents, dropped, scope),
		validateAggregation(incidents),
		validateFiltering(incidents),
		validateExportRoundTrip(incidents, scope),
		validateForecast(incidents),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d read, %d retained, %d dropped\n", len(raws), len(incidents), dropped.Total())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors[:min(len(p.errors), maxErrorsPerPhase)] {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		if len(p.errors) > maxErrorsPerPhase {
			fmt.Printf("  ... %d more\n", len(p.errors)-maxErrorsPerPhase)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadExtract(path string) ([]domain.RawIncident, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvfile.ReadIncidents(f)
}

// ── Phase 1: normalization ──

func validateNormalization(raws []domain.RawIncident, incidents []domain.Incident, dropped domain.DropCounts, scope domain.Scope) *phase {
	p := &phase{name: "Phase 1: Normalization"}

	if len(incidents)+dropped.Total() != len(raws) {
		p.errorf("retained %d + dropped %d != read %d", len(incidents), dropped.Total(), len(raws))
	}
	if len(incidents) == 0 {
		p.errorf("no incidents retained")
	}

	seen := make(map[string]int, len(incidents))
	for i := range incidents {
		inc := &incidents[i]
		if inc.Neighborhood == "" || inc.Category == "" {
			p.errorf("record %d: blank neighborhood or category", i)
		}
		if !scope.ContainsYear(inc.Year) {
			p.errorf("record %d: year %d outside scope %s", i, inc.Year, scope)
		}
		if inc.Year != inc.OccurredDate.Year() {
			p.errorf("record %d: year %d != date year %d", i, inc.Year, inc.OccurredDate.Year())
		}
		if inc.Month.Year() != inc.Year || inc.Month.Month() != inc.OccurredDate.Month() || inc.Month.Day() != 1 {
			p.errorf("record %d: month %s does not truncate %s", i, inc.Month.Format("2006-01-02"), inc.OccurredDate.Format("2006-01-02"))
		}
		if !slices.Contains(domain.Weekdays, inc.Weekday) {
			p.errorf("record %d: weekday %q not canonical", i, inc.Weekday)
		}
		if (inc.Hour == nil) != (inc.OccurredAt == nil) {
			p.errorf("record %d: hour present without timestamp or vice versa", i)
		}
		if inc.Hour != nil && (*inc.Hour < 0 || *inc.Hour > 23) {
			p.errorf("record %d: hour %d out of range", i, *inc.Hour)
		}
		seen[inc.ID]++
	}

	dupes := 0
	for _, n := range seen {
		if n > 1 {
			dupes += n - 1
		}
	}
	if dupes > 0 {
		fmt.Printf("  note: %d records share an ID with an identical source row\n", dupes)
	}
	return p
}

// ── Phase 2: aggregation ──

func validateAggregation(incidents []domain.Incident) *phase {
	p := &phase{name: "Phase 2: Aggregation invariants"}
	view := domain.Aggregate(incidents)

	if view.Summary.Total != len(incidents) {
		p.errorf("summary total %d != %d records", view.Summary.Total, len(incidents))
	}

	monthly := 0
	for i, mc := range view.Monthly {
		monthly += mc.Count
		if i > 0 && !view.Monthly[i-1].Month.Before(mc.Month) {
			p.errorf("monthly series not chronological at %s", mc.Month.Format("2006-01"))
		}
	}
	if monthly != len(incidents) {
		p.errorf("monthly sum %d != %d records", monthly, len(incidents))
	}

	checkRanking(p, "neighborhoods", view.TopNeighborhoods)
	checkRanking(p, "categories", view.TopCategories)

	withHour := 0
	for i := range incidents {
		if incidents[i].Hour != nil {
			withHour++
		}
	}
	matrix, hourly, weekday := 0, 0, 0
	for _, c := range view.HourWeekday {
		matrix += c.Count
	}
	for _, c := range view.Hourly {
		hourly += c.Count
	}
	for _, c := range view.Weekdays {
		weekday += c.Count
	}
	if matrix != withHour || hourly != withHour || weekday != withHour {
		p.errorf("matrix %d, hourly %d, weekday %d; want all %d", matrix, hourly, weekday, withHour)
	}

	if len(incidents) > 0 {
		first, last := incidents[0].OccurredDate, incidents[0].OccurredDate
		for i := range incidents {
			if incidents[i].OccurredDate.Before(first) {
				first = incidents[i].OccurredDate
			}
			if incidents[i].OccurredDate.After(last) {
				last = incidents[i].OccurredDate
			}
		}
		span := math.Max(1, last.Sub(first).Hours()/24+1)
		if want := float64(len(incidents)) / span; math.Abs(view.Summary.AveragePerDay-want) > 1e-9 {
			p.errorf("average per day %g, want %g", view.Summary.AveragePerDay, want)
		}
	}

	if !cmp.Equal(view, domain.Aggregate(incidents)) {
		p.errorf("aggregation is not deterministic")
	}
	return p
}

func checkRanking(p *phase, label string, ranking []domain.LabelCount) {
	if len(ranking) > domain.TopN {
		p.errorf("%s ranking has %d entries", label, len(ranking))
	}
	for i := 1; i < len(ranking); i++ {
		if ranking[i].Count > ranking[i-1].Count {
			p.errorf("%s ranking not descending at %q", label, ranking[i].Label)
		}
	}
}

// ── Phase 3: filtering ──

func validateFiltering(incidents []domain.Incident) *phase {
	p := &phase{name: "Phase 3: Filter semantics"}
	opts := domain.ObserveOptions(incidents)
	defaults := domain.DefaultPredicates(incidents)

	if err := defaults.Validate(); err != nil {
		p.errorf("default predicates invalid: %v", err)
	}

	all := defaults
	all.Categories = domain.SelectAll()
	if n := len(domain.Filter(incidents, all)); n != len(incidents) {
		p.errorf("unrestricted filter kept %d of %d", n, len(incidents))
	}

	none := all
	none.Neighborhoods = domain.SelectOnly()
	if n := len(domain.Filter(incidents, none)); n != 0 {
		p.errorf("empty neighborhood selection kept %d records", n)
	}

	byNeighborhood := 0
	for _, name := range opts.Neighborhoods {
		one := all
		one.Neighborhoods = domain.SelectOnly(name)
		byNeighborhood += len(domain.Filter(incidents, one))
	}
	if byNeighborhood != len(incidents) {
		p.errorf("per-neighborhood filters sum to %d, want %d", byNeighborhood, len(incidents))
	}

	narrowed := all
	narrowed.HourFrom, narrowed.HourTo = 8, 17
	for _, inc := range domain.Filter(incidents, narrowed) {
		if inc.Hour == nil || *inc.Hour < 8 || *inc.Hour > 17 {
			p.errorf("hour filter 8-17 kept record %s", inc.ID)
		}
	}
	return p
}

// ── Phase 4: export ──

func validateExportRoundTrip(incidents []domain.Incident, scope domain.Scope) *phase {
	p := &phase{name: "Phase 4: CSV export round trip"}

	var buf bytes.Buffer
	if err := csvfile.WriteIncidents(&buf, incidents); err != nil {
		p.errorf("write export: %v", err)
		return p
	}
	raws, err := csvfile.ReadIncidents(&buf)
	if err != nil {
		p.errorf("re-read export: %v", err)
		return p
	}
	reingested, dropped := domain.Normalize(raws, scope)
	if dropped.Total() != 0 {
		p.errorf("re-ingestion dropped %d records: %v", dropped.Total(), dropped)
	}
	if diff := cmp.Diff(domain.Aggregate(incidents), domain.Aggregate(reingested)); diff != "" {
		p.errorf("views differ after round trip (-orig +reingested):\n%s", diff)
	}
	return p
}

// ── Phase 5: forecast ──

func validateForecast(incidents []domain.Incident) *phase {
	p := &phase{name: "Phase 5: Forecast contract"}
	series := domain.MonthlySeries(incidents)

	points, err := domain.ForecastMonthly(forecast.NewSeasonalNaive(), series)
	if len(series) < domain.MinForecastHistory {
		if err == nil {
			p.errorf("forecast accepted %d months of history", len(series))
		}
		fmt.Printf("  note: %d months of history, forecast skipped\n", len(series))
		return p
	}
	if err != nil {
		p.errorf("forecast failed: %v", err)
		return p
	}

	if len(points) != domain.ForecastHorizon {
		p.errorf("forecast has %d points, want %d", len(points), domain.ForecastHorizon)
	}
	last := series[len(series)-1].Month
	for i, pt := range points {
		if want := last.AddDate(0, i+1, 0); !pt.Month.Equal(want) {
			p.errorf("point %d month %s, want %s", i, pt.Month.Format("2006-01"), want.Format("2006-01"))
		}
		if pt.Lower > pt.Forecast || pt.Forecast > pt.Upper {
			p.errorf("point %d interval [%g, %g] does not bracket %g", i, pt.Lower, pt.Upper, pt.Forecast)
		}
	}
	return p
}
