package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
	"github.com/couchcryptid/sf-incident-analytics/internal/forecast"
	"github.com/couchcryptid/sf-incident-analytics/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMission    = "Mission"
	testTenderloin = "Tenderloin"
)

type fakeSnapshots struct {
	mu          sync.Mutex
	snaps       []*domain.Snapshot
	next        int
	err         error
	invalidated int
}

func (f *fakeSnapshots) Get(_ context.Context) (*domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.snaps[f.next], nil
}

func (f *fakeSnapshots) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	if f.next < len(f.snaps)-1 {
		f.next++
	}
}

func intPtr(v int) *int { return &v }

func selPtr(s domain.Selection) *domain.Selection { return &s }

func incident(date time.Time, neighborhood, category string, hour *int) domain.Incident {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return domain.Incident{
		ID:           fmt.Sprintf("inc-%s-%s-%s", day.Format(time.DateOnly), neighborhood, category),
		OccurredDate: day,
		Neighborhood: neighborhood,
		Category:     category,
		Weekday:      day.Weekday().String(),
		Year:         day.Year(),
		Month:        time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC),
		Hour:         hour,
	}
}

// monthlySnapshot has one Mission assault per month for months, starting
// January 2018, plus a few Tenderloin thefts in 2019.
func monthlySnapshot(id string, months int) *domain.Snapshot {
	start := time.Date(2018, time.January, 1, 0, 0, 0, 0, time.UTC)
	var incs []domain.Incident
	for i := range months {
		incs = append(incs, incident(start.AddDate(0, i, 4), testMission, "Assault", intPtr(i%24)))
	}
	incs = append(incs,
		incident(time.Date(2019, 3, 2, 0, 0, 0, 0, time.UTC), testTenderloin, "Larceny Theft", intPtr(9)),
		incident(time.Date(2019, 3, 3, 0, 0, 0, 0, time.UTC), testTenderloin, "Larceny Theft", nil),
	)
	return &domain.Snapshot{
		ID:        id,
		Source:    "mock",
		Scope:     domain.DefaultScope(),
		FetchedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Incidents: incs,
		Fetched:   len(incs) + 1,
		Dropped:   domain.DropCounts{domain.DropMissingCategory: 1},
	}
}

func newTestService(src SnapshotSource) (*Service, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(src, forecast.NewSeasonalNaive(), 8, logger, metrics), metrics
}

func TestService_Options(t *testing.T) {
	svc, _ := newTestService(&fakeSnapshots{snaps: []*domain.Snapshot{monthlySnapshot("s1", 30)}})

	res, err := svc.Options(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "s1", res.SnapshotID)
	assert.Equal(t, 32, res.TotalRecords)
	assert.Equal(t, 33, res.Fetched)
	assert.Equal(t, 1, res.Dropped[domain.DropMissingCategory])
	assert.Equal(t, "2018-01-01..2025-12-31", res.Scope)
	assert.Equal(t, []int{2018, 2019, 2020}, res.Options.Years)
	assert.Equal(t, []string{testMission, testTenderloin}, res.Options.Neighborhoods)
	assert.Equal(t, []string{"Assault", "Larceny Theft"}, res.Options.Categories)
	assert.Equal(t, 2018, res.Defaults.YearFrom)
	assert.Equal(t, 2020, res.Defaults.YearTo)
}

func TestService_View_DefaultsAndMemo(t *testing.T) {
	svc, metrics := newTestService(&fakeSnapshots{snaps: []*domain.Snapshot{monthlySnapshot("s1", 30)}})

	first, err := svc.View(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, 32, first.Filtered)
	assert.Equal(t, 32, first.Summary.Total)
	assert.Equal(t, "s1", first.SnapshotID)

	second, err := svc.View(context.Background(), Query{})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ViewCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ViewCache.WithLabelValues("miss")), 0)
}

func TestService_View_Overrides(t *testing.T) {
	svc, _ := newTestService(&fakeSnapshots{snaps: []*domain.Snapshot{monthlySnapshot("s1", 30)}})

	res, err := svc.View(context.Background(), Query{
		YearFrom:      intPtr(2019),
		YearTo:        intPtr(2019),
		Neighborhoods: selPtr(domain.SelectOnly(testTenderloin)),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Filtered)
	require.Len(t, res.TopCategories, 1)
	assert.Equal(t, domain.LabelCount{Label: "Larceny Theft", Count: 2}, res.TopCategories[0])

	res, err = svc.View(context.Background(), Query{
		Neighborhoods: selPtr(domain.SelectOnly(testTenderloin)),
		HourFrom:      intPtr(8),
		HourTo:        intPtr(10),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Filtered, "the record without an hour fails a narrowed hour range")
}

func TestService_View_EmptySelection(t *testing.T) {
	svc, _ := newTestService(&fakeSnapshots{snaps: []*domain.Snapshot{monthlySnapshot("s1", 30)}})

	res, err := svc.View(context.Background(), Query{Categories: selPtr(domain.SelectOnly())})
	require.NoError(t, err)
	assert.Zero(t, res.Filtered)
	assert.Zero(t, res.Summary.Total)
	assert.NotNil(t, res.Monthly)
	assert.Empty(t, res.Monthly)
	assert.Empty(t, res.HourWeekday)
}

func TestService_View_InvalidPredicates(t *testing.T) {
	svc, _ := newTestService(&fakeSnapshots{snaps: []*domain.Snapshot{monthlySnapshot("s1", 30)}})

	_, err := svc.View(context.Background(), Query{YearFrom: intPtr(2021), YearTo: intPtr(2019)})
	require.ErrorIs(t, err, domain.ErrInvalidPredicates)

	_, err = svc.View(context.Background(), Query{HourTo: intPtr(24)})
	require.ErrorIs(t, err, domain.ErrInvalidPredicates)
}

func TestService_SourceUnavailable(t *testing.T) {
	src := &fakeSnapshots{err: fmt.Errorf("%w: timeout", domain.ErrSourceUnavailable)}
	svc, _ := newTestService(src)

	_, err := svc.View(context.Background(), Query{})
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	_, err = svc.Options(context.Background())
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	_, err = svc.Forecast(context.Background())
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestService_Filtered(t *testing.T) {
	svc, _ := newTestService(&fakeSnapshots{snaps: []*domain.Snapshot{monthlySnapshot("s1", 30)}})

	incs, preds, err := svc.Filtered(context.Background(), Query{Neighborhoods: selPtr(domain.SelectOnly(testMission))})
	require.NoError(t, err)
	assert.Len(t, incs, 30)
	assert.Equal(t, []string{testMission}, preds.Neighborhoods.Values())

	_, _, err = svc.Filtered(context.Background(), Query{HourFrom: intPtr(-1)})
	require.ErrorIs(t, err, domain.ErrInvalidPredicates)
}

func TestService_Forecast(t *testing.T) {
	svc, _ := newTestService(&fakeSnapshots{snaps: []*domain.Snapshot{monthlySnapshot("s1", 30)}})

	res, err := svc.Forecast(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s1", res.SnapshotID)
	assert.Len(t, res.History, 30)
	require.Len(t, res.Forecast, domain.ForecastHorizon)
	assert.Equal(t, time.Date(2020, time.July, 1, 0, 0, 0, 0, time.UTC), res.Forecast[0].Month)
	assert.Contains(t, res.Model, "seasonal_naive")
}

func TestService_Forecast_InsufficientHistory(t *testing.T) {
	svc, _ := newTestService(&fakeSnapshots{snaps: []*domain.Snapshot{monthlySnapshot("s1", 12)}})

	_, err := svc.Forecast(context.Background())
	require.ErrorIs(t, err, domain.ErrInsufficientHistory)
}

func TestService_Refresh(t *testing.T) {
	src := &fakeSnapshots{snaps: []*domain.Snapshot{monthlySnapshot("s1", 30), monthlySnapshot("s2", 26)}}
	svc, _ := newTestService(src)

	before, err := svc.View(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, "s1", before.SnapshotID)

	info, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s2", info.SnapshotID)
	assert.Equal(t, 1, src.invalidated)
	assert.Zero(t, svc.views.len())

	after, err := svc.View(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, "s2", after.SnapshotID)
	assert.Equal(t, 28, after.Filtered)
}

func TestService_Refresh_Failure(t *testing.T) {
	src := &fakeSnapshots{err: errors.New("boom")}
	svc, _ := newTestService(src)

	_, err := svc.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, src.invalidated)
}

func TestService_ConcurrentViews(t *testing.T) {
	svc, _ := newTestService(&fakeSnapshots{snaps: []*domain.Snapshot{monthlySnapshot("s1", 30)}})

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := Query{HourFrom: intPtr(i % 4), HourTo: intPtr(23)}
			res, err := svc.View(context.Background(), q)
			assert.NoError(t, err)
			assert.Equal(t, i%4, res.Predicates.HourFrom)
		}(i)
	}
	wg.Wait()
}

// --- viewCache ---

func TestViewCache_Eviction(t *testing.T) {
	c := newViewCache(2)
	a, b, d := &ViewResult{SnapshotID: "a"}, &ViewResult{SnapshotID: "b"}, &ViewResult{SnapshotID: "d"}

	c.put("a", a)
	c.put("b", b)
	_, ok := c.get("a") // a becomes most recent
	require.True(t, ok)

	c.put("d", d)
	_, ok = c.get("b")
	assert.False(t, ok, "least recently used entry evicted")
	got, ok := c.get("a")
	assert.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 2, c.len())
}

func TestViewCache_UpdateExisting(t *testing.T) {
	c := newViewCache(2)
	c.put("k", &ViewResult{Filtered: 1})
	c.put("k", &ViewResult{Filtered: 2})

	got, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, 2, got.Filtered)
	assert.Equal(t, 1, c.len())
}

func TestViewCache_Purge(t *testing.T) {
	c := newViewCache(4)
	c.put("a", &ViewResult{})
	c.put("b", &ViewResult{})
	c.purge()
	assert.Zero(t, c.len())
	_, ok := c.get("a")
	assert.False(t, ok)
}
