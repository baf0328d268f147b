// Command genmock writes a synthetic incident extract in the DataSF CSV
// layout, for exercising the service without network access. Output is
// deterministic for a given seed. A fraction of rows is deliberately dirty
// (blank required fields, out-of-scope dates) so normalization has something
// to drop.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/incidents.csv -rows 20000 -seed 7
//	INCIDENTS_FILE=data/mock/incidents.csv go run ./cmd/analytics
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/sf-incident-analytics/internal/adapter/csvfile"
	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
)

var header = []string{
	"Incident Datetime",
	"Incident Date",
	"Incident Day of Week",
	"Incident Category",
	"Analysis Neighborhood",
	"Latitude",
	"Longitude",
}

// categories is weighted towards the most common DataSF categories.
var categories = []struct {
	name   string
	weight int
}{
	{"Larceny Theft", 30},
	{"Other Miscellaneous", 10},
	{"Malicious Mischief", 8},
	{"Assault", 8},
	{"Non-Criminal", 7},
	{"Burglary", 6},
	{"Motor Vehicle Theft", 6},
	{"Recovered Vehicle", 5},
	{"Fraud", 4},
	{"Warrant", 4},
	{"Drug Offense", 3},
	{"Robbery", 3},
	{"Missing Person", 2},
	{"Disorderly Conduct", 2},
	{"Weapons Offense", 1},
	{"Arson", 1},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the CSV extract")
	rows := flag.Int("rows", 10000, "number of rows to generate")
	seed := flag.Uint64("seed", 1, "random seed")
	dirtyRate := flag.Float64("dirty-rate", 0.02, "fraction of rows with a defect")
	startYear := flag.Int("start-year", 2018, "first year of generated dates")
	endYear := flag.Int("end-year", 2025, "last year of generated dates")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *rows <= 0 || *dirtyRate < 0 || *dirtyRate > 1 || *endYear < *startYear {
		return fmt.Errorf("invalid flags: rows=%d dirty-rate=%g years=%d-%d", *rows, *dirtyRate, *startYear, *endYear)
	}

	g := newGenerator(*seed, *startYear, *endYear, *dirtyRate)
	records := make([][]string, 0, *rows)
	for range *rows {
		records = append(records, g.row())
	}

	if err := writeCSV(*out, records); err != nil {
		return fmt.Errorf("writing extract: %w", err)
	}
	log.Printf("wrote %d rows: %s", len(records), *out)

	return printStats(*out)
}

type generator struct {
	rng          *rand.Rand
	start        time.Time
	days         int
	dirtyRate    float64
	neighborhood []domain.AnalysisNeighborhood
	totalWeight  int
}

func newGenerator(seed uint64, startYear, endYear int, dirtyRate float64) *generator {
	start := time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(endYear+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	total := 0
	for _, c := range categories {
		total += c.weight
	}
	return &generator{
		rng:          rand.New(rand.NewPCG(seed, seed^0x5f3759df)),
		start:        start,
		days:         int(end.Sub(start).Hours() / 24),
		dirtyRate:    dirtyRate,
		neighborhood: domain.AnalysisNeighborhoods(),
		totalWeight:  total,
	}
}

func (g *generator) row() []string {
	day := g.start.AddDate(0, 0, g.rng.IntN(g.days))
	at := day.Add(time.Duration(g.hour())*time.Hour + time.Duration(g.rng.IntN(60))*time.Minute)

	rec := []string{
		at.Format("2006/01/02 03:04:05 PM"),
		day.Format("2006/01/02"),
		day.Weekday().String(),
		g.category(),
		g.neighborhood[g.rng.IntN(len(g.neighborhood))].Name,
		strconv.FormatFloat(37.70+g.rng.Float64()*0.11, 'f', 6, 64),
		strconv.FormatFloat(-122.51+g.rng.Float64()*0.14, 'f', 6, 64),
	}

	if g.rng.Float64() < g.dirtyRate {
		g.corrupt(rec)
	}
	return rec
}

// hour skews towards afternoon and evening.
func (g *generator) hour() int {
	if g.rng.IntN(3) == 0 {
		return g.rng.IntN(24)
	}
	return 11 + g.rng.IntN(12)
}

func (g *generator) category() string {
	n := g.rng.IntN(g.totalWeight)
	for _, c := range categories {
		if n < c.weight {
			return c.name
		}
		n -= c.weight
	}
	return categories[0].name
}

// corrupt applies one defect to rec.
func (g *generator) corrupt(rec []string) {
	switch g.rng.IntN(6) {
	case 0:
		rec[1] = ""
	case 1:
		rec[4] = ""
	case 2:
		rec[3] = ""
	case 3:
		rec[0] = ""
		rec[2] = ""
	case 4:
		rec[5], rec[6] = "", ""
	default:
		old := g.start.AddDate(-1, 0, g.rng.IntN(365))
		rec[0] = old.Format("2006/01/02 03:04:05 PM")
		rec[1] = old.Format("2006/01/02")
		rec[2] = old.Weekday().String()
	}
}

func writeCSV(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return f.Close()
}

// printStats re-reads the extract through the normal ingestion path and
// prints figures useful for test assertions.
func printStats(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	raws, err := csvfile.ReadIncidents(f)
	if err != nil {
		return err
	}
	incidents, dropped := domain.Normalize(raws, domain.DefaultScope())
	view := domain.Aggregate(incidents)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Rows: %d, retained: %d, dropped: %d\n", len(raws), len(incidents), dropped.Total())
	for _, reason := range []domain.DropReason{
		domain.DropMissingDate, domain.DropMissingNeighborhood,
		domain.DropMissingCategory, domain.DropOutOfScope,
	} {
		fmt.Printf("  %s=%d\n", reason, dropped[reason])
	}
	fmt.Printf("Months: %d, average per day: %.2f\n", len(view.Monthly), view.Summary.AveragePerDay)
	fmt.Println("Top categories:")
	for _, lc := range view.TopCategories {
		fmt.Printf("  %s=%d\n", lc.Label, lc.Count)
	}
	fmt.Println("Top neighborhoods:")
	for _, lc := range view.TopNeighborhoods {
		fmt.Printf("  %s=%d\n", lc.Label, lc.Count)
	}
	return nil
}
