// Package forecast provides the monthly incident forecasting model.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aclements/go-moremath/stats"

	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
)

const (
	// DefaultPeriod is the seasonal period of a monthly series.
	DefaultPeriod = 12

	// DefaultConfidence is the two-sided interval coverage.
	DefaultConfidence = 0.95
)

// SeasonalNaive forecasts each month as the same month one season earlier
// plus the mean seasonal drift. The interval widens with the number of
// seasons projected ahead.
type SeasonalNaive struct {
	Period     int
	Confidence float64
}

// NewSeasonalNaive returns a yearly-seasonal model with 95% intervals.
func NewSeasonalNaive() *SeasonalNaive {
	return &SeasonalNaive{Period: DefaultPeriod, Confidence: DefaultConfidence}
}

// Name identifies the model in API responses.
func (m *SeasonalNaive) Name() string {
	return fmt.Sprintf("seasonal_naive_drift(period=%d, confidence=%.2f)", m.Period, m.Confidence)
}

// Forecast implements domain.Forecaster. Months missing from series are
// treated as zero counts.
func (m *SeasonalNaive) Forecast(series []domain.MonthCount, horizon int) ([]domain.ForecastPoint, error) {
	if horizon <= 0 {
		return nil, errors.New("horizon must be positive")
	}
	if m.Period <= 0 || m.Confidence <= 0 || m.Confidence >= 1 {
		return nil, fmt.Errorf("invalid model parameters: period %d, confidence %g", m.Period, m.Confidence)
	}

	months, values := densify(series)
	if len(values) < m.Period+2 {
		return nil, fmt.Errorf("need at least %d months, have %d", m.Period+2, len(values))
	}

	diffs := make([]float64, len(values)-m.Period)
	for i := range diffs {
		diffs[i] = values[i+m.Period] - values[i]
	}
	drift := stats.Mean(diffs)
	sigma := stats.StdDev(diffs)
	z := stats.NormalDist{Mu: 0, Sigma: 1}.InvCDF(0.5 + m.Confidence/2)

	n := len(values)
	last := months[n-1]
	out := make([]domain.ForecastPoint, horizon)
	for h := 1; h <= horizon; h++ {
		seasons := float64((h-1)/m.Period + 1)
		base := values[n-m.Period+(h-1)%m.Period]
		yhat := math.Max(0, base+seasons*drift)
		margin := z * sigma * math.Sqrt(seasons)

		out[h-1] = domain.ForecastPoint{
			Month:    last.AddDate(0, h, 0),
			Forecast: yhat,
			Lower:    math.Max(0, yhat-margin),
			Upper:    yhat + margin,
		}
	}
	return out, nil
}

// densify returns a contiguous monthly series from the first to the last
// observed month, filling gaps with zero.
func densify(series []domain.MonthCount) ([]time.Time, []float64) {
	if len(series) == 0 {
		return nil, nil
	}
	counts := make(map[time.Time]int, len(series))
	for _, mc := range series {
		counts[mc.Month] += mc.Count
	}

	first := series[0].Month
	last := series[len(series)-1].Month
	var months []time.Time
	var values []float64
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
		values = append(values, float64(counts[m]))
	}
	return months, values
}
