package domain

import "errors"

var (
	// ErrSourceUnavailable signals that ingestion failed and no data was kept.
	ErrSourceUnavailable = errors.New("incident source unavailable")

	// ErrNoIncidents signals that the source answered but no record survived
	// normalization and scoping.
	ErrNoIncidents = errors.New("no incidents in scope")

	// ErrInsufficientHistory is returned when a monthly series is too short
	// to forecast.
	ErrInsufficientHistory = errors.New("insufficient history for forecast")

	ErrInvalidPredicates = errors.New("invalid predicates")
)
