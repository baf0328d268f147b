package domain

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelection(t *testing.T) {
	all := SelectAll()
	assert.True(t, all.All())
	assert.True(t, all.Contains("anything"))
	assert.Nil(t, all.Values())

	none := SelectOnly()
	assert.False(t, none.All())
	assert.False(t, none.Contains(testMission))
	assert.Empty(t, none.Values())

	some := SelectOnly(testTenderloin, testMission)
	assert.True(t, some.Contains(testMission))
	assert.False(t, some.Contains("Marina"))
	assert.Equal(t, []string{testMission, testTenderloin}, some.Values())

	var zero Selection
	assert.True(t, zero.All(), "zero value selects everything")
}

func TestSelection_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Selection `json:"a"`
		B Selection `json:"b"`
		C Selection `json:"c"`
	}{SelectAll(), SelectOnly(), SelectOnly("b", "a")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":null,"b":[],"c":["a","b"]}`, string(data))
}

func TestDefaultPredicates(t *testing.T) {
	var records []Incident
	for i := range 12 {
		date := time.Date(2019+i%3, 1, 1, 0, 0, 0, 0, time.UTC)
		records = append(records, makeIncident(date, testMission, fmt.Sprintf("Category %02d", 11-i), "Monday", nil))
	}

	p := DefaultPredicates(records)

	assert.Equal(t, 2019, p.YearFrom)
	assert.Equal(t, 2021, p.YearTo)
	assert.True(t, p.Neighborhoods.All())
	assert.True(t, p.Weekdays.All())
	assert.Equal(t, 0, p.HourFrom)
	assert.Equal(t, 23, p.HourTo)

	cats := p.Categories.Values()
	require.Len(t, cats, DefaultCategoryCount)
	assert.Equal(t, "Category 00", cats[0])
	assert.Equal(t, "Category 09", cats[9])
	assert.False(t, p.Categories.Contains("Category 10"))
}

func TestFilter_DefaultsKeepEverything(t *testing.T) {
	records := syntheticIncidents(200)
	// Mix in records without an hour; the full hour range must keep them.
	records = append(records,
		makeIncident(time.Date(2020, 5, 5, 0, 0, 0, 0, time.UTC), testMission, testLarceny, "Tuesday", nil))

	p := DefaultPredicates(records)
	// Five categories in the fixture, so the first-ten default keeps them all.
	got := Filter(records, p)
	assert.Equal(t, records, got)
}

func TestFilter_EmptySelectionExcludesEverything(t *testing.T) {
	records := syntheticIncidents(100)

	tests := []struct {
		name  string
		apply func(*Predicates)
	}{
		{"neighborhoods", func(p *Predicates) { p.Neighborhoods = SelectOnly() }},
		{"categories", func(p *Predicates) { p.Categories = SelectOnly() }},
		{"weekdays", func(p *Predicates) { p.Weekdays = SelectOnly() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPredicates(records)
			tt.apply(&p)

			filtered := Filter(records, p)
			assert.Empty(t, filtered)

			view := Aggregate(filtered)
			assert.Equal(t, Summary{}, view.Summary)
			assert.Empty(t, view.Monthly)
			assert.Empty(t, view.TopCategories)
		})
	}
}

func TestFilter_Predicates(t *testing.T) {
	day := func(y int) time.Time { return time.Date(y, 6, 1, 0, 0, 0, 0, time.UTC) }
	records := []Incident{
		makeIncident(day(2019), testMission, testLarceny, "Monday", intPtr(3)),
		makeIncident(day(2020), testTenderloin, testAssault, "Tuesday", intPtr(12)),
		makeIncident(day(2021), testMission, testAssault, "Saturday", intPtr(22)),
		makeIncident(day(2022), testTenderloin, testLarceny, "Sunday", nil),
	}
	base := DefaultPredicates(records)

	tests := []struct {
		name  string
		apply func(*Predicates)
		want  int
	}{
		{"defaults", func(*Predicates) {}, 4},
		{"year range", func(p *Predicates) { p.YearFrom, p.YearTo = 2020, 2021 }, 2},
		{"neighborhood", func(p *Predicates) { p.Neighborhoods = SelectOnly(testTenderloin) }, 2},
		{"category", func(p *Predicates) { p.Categories = SelectOnly(testAssault) }, 2},
		{"weekday", func(p *Predicates) { p.Weekdays = SelectOnly("Saturday", "Sunday") }, 2},
		{"hour range drops unknown hours", func(p *Predicates) { p.HourFrom, p.HourTo = 0, 22 }, 3},
		{"narrow hour range", func(p *Predicates) { p.HourFrom, p.HourTo = 10, 13 }, 1},
		{"combined", func(p *Predicates) {
			p.Neighborhoods = SelectOnly(testMission)
			p.Categories = SelectOnly(testAssault)
		}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.apply(&p)
			assert.Len(t, Filter(records, p), tt.want)
		})
	}
}

func TestPredicates_Validate(t *testing.T) {
	valid := Predicates{YearFrom: 2018, YearTo: 2025, HourFrom: 0, HourTo: 23}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		apply func(*Predicates)
	}{
		{"inverted years", func(p *Predicates) { p.YearFrom, p.YearTo = 2025, 2018 }},
		{"inverted hours", func(p *Predicates) { p.HourFrom, p.HourTo = 20, 4 }},
		{"hour too large", func(p *Predicates) { p.HourTo = 24 }},
		{"negative hour", func(p *Predicates) { p.HourFrom = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.apply(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPredicates)
		})
	}
}

func TestPredicates_Key(t *testing.T) {
	a := Predicates{YearFrom: 2018, YearTo: 2025, Neighborhoods: SelectOnly("b", "a"), HourTo: 23}
	b := Predicates{YearFrom: 2018, YearTo: 2025, Neighborhoods: SelectOnly("a", "b"), HourTo: 23}
	c := Predicates{YearFrom: 2018, YearTo: 2025, Neighborhoods: SelectOnly(), HourTo: 23}
	d := Predicates{YearFrom: 2018, YearTo: 2025, HourTo: 23}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.NotEqual(t, c.Key(), d.Key(), "empty selection differs from select-all")
}

func TestObserveOptions(t *testing.T) {
	opts := ObserveOptions(exampleIncidents())
	assert.Equal(t, []int{2024}, opts.Years)
	assert.Equal(t, []string{testMission, testTenderloin}, opts.Neighborhoods)
	assert.Equal(t, []string{testAssault, testLarceny}, opts.Categories)
	assert.Equal(t, Weekdays, opts.Weekdays)
}
