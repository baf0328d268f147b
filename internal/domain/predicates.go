package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// DefaultCategoryCount is how many categories, in lexicographic order, are
// selected by default.
const DefaultCategoryCount = 10

const (
	minHour = 0
	maxHour = 23
)

// Selection is a multiselect predicate. The zero value selects everything;
// SelectOnly with no values selects nothing.
type Selection struct {
	restricted bool
	values     map[string]struct{}
}

// SelectAll returns a selection that matches every value.
func SelectAll() Selection { return Selection{} }

// SelectOnly returns a selection matching exactly the given values.
func SelectOnly(values ...string) Selection {
	s := Selection{restricted: true, values: make(map[string]struct{}, len(values))}
	for _, v := range values {
		s.values[v] = struct{}{}
	}
	return s
}

// All reports whether the selection is unrestricted.
func (s Selection) All() bool { return !s.restricted }

// Contains reports whether v passes the selection.
func (s Selection) Contains(v string) bool {
	if !s.restricted {
		return true
	}
	_, ok := s.values[v]
	return ok
}

// Values returns the selected values in sorted order, or nil when the
// selection is unrestricted.
func (s Selection) Values() []string {
	if !s.restricted {
		return nil
	}
	out := make([]string, 0, len(s.values))
	for v := range s.values {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes an unrestricted selection as null and a restricted one
// as a sorted array.
func (s Selection) MarshalJSON() ([]byte, error) {
	if !s.restricted {
		return []byte("null"), nil
	}
	return json.Marshal(s.Values())
}

func (s Selection) key() string {
	if !s.restricted {
		return "*"
	}
	vals := s.Values()
	for i, v := range vals {
		vals[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(vals, ",") + "]"
}

// Predicates is the set of filters applied to a snapshot. All predicates are
// combined with logical AND.
type Predicates struct {
	YearFrom      int       `json:"year_from"`
	YearTo        int       `json:"year_to"`
	Neighborhoods Selection `json:"neighborhoods"`
	Categories    Selection `json:"categories"`
	Weekdays      Selection `json:"weekdays"`
	HourFrom      int       `json:"hour_from"`
	HourTo        int       `json:"hour_to"`
}

// Options lists the values observed in a record set that a caller can filter on.
type Options struct {
	Years         []int    `json:"years"`
	Neighborhoods []string `json:"neighborhoods"`
	Categories    []string `json:"categories"`
	Weekdays      []string `json:"weekdays"`
}

// ObserveOptions collects the distinct years, neighborhoods and categories in
// records, each sorted ascending.
func ObserveOptions(records []Incident) Options {
	years := map[int]struct{}{}
	neighborhoods := map[string]struct{}{}
	categories := map[string]struct{}{}
	for i := range records {
		years[records[i].Year] = struct{}{}
		neighborhoods[records[i].Neighborhood] = struct{}{}
		categories[records[i].Category] = struct{}{}
	}

	opts := Options{
		Years:         make([]int, 0, len(years)),
		Neighborhoods: sortedKeys(neighborhoods),
		Categories:    sortedKeys(categories),
		Weekdays:      slices.Clone(Weekdays),
	}
	for y := range years {
		opts.Years = append(opts.Years, y)
	}
	sort.Ints(opts.Years)
	return opts
}

// DefaultPredicates returns the predicate set a fresh view starts from: the
// full observed year range, every neighborhood, the first ten categories in
// lexicographic order, every weekday and every hour.
func DefaultPredicates(records []Incident) Predicates {
	opts := ObserveOptions(records)

	p := Predicates{
		Neighborhoods: SelectAll(),
		Weekdays:      SelectAll(),
		HourFrom:      minHour,
		HourTo:        maxHour,
	}
	if len(opts.Years) > 0 {
		p.YearFrom = opts.Years[0]
		p.YearTo = opts.Years[len(opts.Years)-1]
	}

	cats := opts.Categories
	if len(cats) > DefaultCategoryCount {
		cats = cats[:DefaultCategoryCount]
	}
	p.Categories = SelectOnly(cats...)
	return p
}

// Validate checks that both ranges are well formed.
func (p Predicates) Validate() error {
	if p.YearFrom > p.YearTo {
		return fmt.Errorf("%w: year_from %d after year_to %d", ErrInvalidPredicates, p.YearFrom, p.YearTo)
	}
	if p.HourFrom < minHour || p.HourTo > maxHour {
		return fmt.Errorf("%w: hour range must lie within %d-%d", ErrInvalidPredicates, minHour, maxHour)
	}
	if p.HourFrom > p.HourTo {
		return fmt.Errorf("%w: hour_from %d after hour_to %d", ErrInvalidPredicates, p.HourFrom, p.HourTo)
	}
	return nil
}

// hourRestricted reports whether the hour range excludes any hour. Records
// without a known hour only pass an unrestricted range.
func (p Predicates) hourRestricted() bool {
	return p.HourFrom > minHour || p.HourTo < maxHour
}

// Matches reports whether inc passes every predicate.
func (p Predicates) Matches(inc *Incident) bool {
	if inc.Year < p.YearFrom || inc.Year > p.YearTo {
		return false
	}
	if !p.Neighborhoods.Contains(inc.Neighborhood) ||
		!p.Categories.Contains(inc.Category) ||
		!p.Weekdays.Contains(inc.Weekday) {
		return false
	}
	if p.hourRestricted() {
		if inc.Hour == nil || *inc.Hour < p.HourFrom || *inc.Hour > p.HourTo {
			return false
		}
	}
	return true
}

// Key returns a canonical string for the predicate set. Equal predicate sets
// produce equal keys.
func (p Predicates) Key() string {
	return fmt.Sprintf("y=%d-%d;n=%s;c=%s;w=%s;h=%d-%d",
		p.YearFrom, p.YearTo,
		p.Neighborhoods.key(), p.Categories.key(), p.Weekdays.key(),
		p.HourFrom, p.HourTo,
	)
}

// Filter returns the records matching p, in input order. The input is not
// modified.
func Filter(records []Incident, p Predicates) []Incident {
	out := make([]Incident, 0)
	for i := range records {
		if p.Matches(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
