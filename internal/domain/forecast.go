package domain

import (
	"fmt"
	"time"
)

const (
	// ForecastHorizon is the number of months forecast past the last
	// observed month.
	ForecastHorizon = 6

	// MinForecastHistory is the minimum number of monthly points a series
	// needs before a forecast is attempted.
	MinForecastHistory = 24
)

// ForecastPoint is one forecast month with a two-sided interval.
type ForecastPoint struct {
	Month    time.Time `json:"month"`
	Forecast float64   `json:"forecast"`
	Lower    float64   `json:"lower"`
	Upper    float64   `json:"upper"`
}

// Forecaster produces a point forecast with intervals for the horizon months
// following the last month of a chronologically ordered series.
type Forecaster interface {
	Forecast(series []MonthCount, horizon int) ([]ForecastPoint, error)
}

// ForecastMonthly checks the series length and, when long enough, asks f for
// a ForecastHorizon-month forecast.
func ForecastMonthly(f Forecaster, series []MonthCount) ([]ForecastPoint, error) {
	if len(series) < MinForecastHistory {
		return nil, fmt.Errorf("%w: have %d months, need %d", ErrInsufficientHistory, len(series), MinForecastHistory)
	}
	points, err := f.Forecast(series, ForecastHorizon)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	return points, nil
}
