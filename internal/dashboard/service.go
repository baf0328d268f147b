// Package dashboard serves filtered views, options, forecasts and exports
// computed from the cached incident snapshot.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
	"github.com/couchcryptid/sf-incident-analytics/internal/observability"
)

// SnapshotSource supplies the current snapshot.
type SnapshotSource interface {
	Get(ctx context.Context) (*domain.Snapshot, error)
	Invalidate()
}

// Model is a named forecaster.
type Model interface {
	domain.Forecaster
	Name() string
}

// Query carries caller overrides. Nil fields fall back to the defaults
// derived from the snapshot.
type Query struct {
	YearFrom      *int
	YearTo        *int
	HourFrom      *int
	HourTo        *int
	Neighborhoods *domain.Selection
	Categories    *domain.Selection
	Weekdays      *domain.Selection
}

func (q Query) resolve(defaults domain.Predicates) domain.Predicates {
	p := defaults
	if q.YearFrom != nil {
		p.YearFrom = *q.YearFrom
	}
	if q.YearTo != nil {
		p.YearTo = *q.YearTo
	}
	if q.HourFrom != nil {
		p.HourFrom = *q.HourFrom
	}
	if q.HourTo != nil {
		p.HourTo = *q.HourTo
	}
	if q.Neighborhoods != nil {
		p.Neighborhoods = *q.Neighborhoods
	}
	if q.Categories != nil {
		p.Categories = *q.Categories
	}
	if q.Weekdays != nil {
		p.Weekdays = *q.Weekdays
	}
	return p
}

// SnapshotInfo describes the snapshot a result was computed from.
type SnapshotInfo struct {
	SnapshotID           string                    `json:"snapshot_id"`
	Source               string                    `json:"source"`
	Scope                string                    `json:"scope"`
	FetchedAt            time.Time                 `json:"fetched_at"`
	TotalRecords         int                       `json:"total_records"`
	Fetched              int                       `json:"fetched"`
	Dropped              map[domain.DropReason]int `json:"dropped"`
	UnknownNeighborhoods int                       `json:"unknown_neighborhoods"`
}

// OptionsResult lists the filterable values and the default predicates.
type OptionsResult struct {
	SnapshotInfo
	Options  domain.Options    `json:"options"`
	Defaults domain.Predicates `json:"defaults"`
}

// ViewResult is one filtered and aggregated view.
type ViewResult struct {
	SnapshotID   string            `json:"snapshot_id"`
	FetchedAt    time.Time         `json:"fetched_at"`
	TotalRecords int               `json:"total_records"`
	Filtered     int               `json:"filtered"`
	Predicates   domain.Predicates `json:"predicates"`
	domain.View
}

// ForecastResult is the citywide monthly forecast.
type ForecastResult struct {
	SnapshotID string                 `json:"snapshot_id"`
	Model      string                 `json:"model"`
	History    []domain.MonthCount    `json:"history"`
	Forecast   []domain.ForecastPoint `json:"forecast"`
}

// derived holds values computed once per snapshot.
type derived struct {
	snapshotID string
	options    domain.Options
	defaults   domain.Predicates
	monthly    []domain.MonthCount
}

// Service computes dashboard results. It is safe for concurrent use.
type Service struct {
	snapshots SnapshotSource
	model     Model
	views     *viewCache
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu      sync.Mutex
	derived *derived
}

// NewService creates a Service with a view cache of viewCacheSize entries.
func NewService(snapshots SnapshotSource, model Model, viewCacheSize int, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		snapshots: snapshots,
		model:     model,
		views:     newViewCache(viewCacheSize),
		logger:    logger,
		metrics:   metrics,
	}
}

// Options returns the observed filter values and default predicates.
func (s *Service) Options(ctx context.Context) (*OptionsResult, error) {
	snap, d, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return &OptionsResult{
		SnapshotInfo: info(snap),
		Options:      d.options,
		Defaults:     d.defaults,
	}, nil
}

// View filters the snapshot with the resolved predicates and aggregates the
// result. Views are memoized per snapshot and predicate set.
func (s *Service) View(ctx context.Context, q Query) (*ViewResult, error) {
	snap, d, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	preds := q.resolve(d.defaults)
	if err := preds.Validate(); err != nil {
		return nil, err
	}

	key := snap.ID + "|" + preds.Key()
	if v, ok := s.views.get(key); ok {
		s.metrics.ViewCache.WithLabelValues("hit").Inc()
		return v, nil
	}
	s.metrics.ViewCache.WithLabelValues("miss").Inc()

	filtered := domain.Filter(snap.Incidents, preds)
	v := &ViewResult{
		SnapshotID:   snap.ID,
		FetchedAt:    snap.FetchedAt,
		TotalRecords: len(snap.Incidents),
		Filtered:     len(filtered),
		Predicates:   preds,
		View:         domain.Aggregate(filtered),
	}
	s.views.put(key, v)
	return v, nil
}

// Filtered returns the records matching the resolved predicates, for export.
func (s *Service) Filtered(ctx context.Context, q Query) ([]domain.Incident, domain.Predicates, error) {
	snap, d, err := s.current(ctx)
	if err != nil {
		return nil, domain.Predicates{}, err
	}
	preds := q.resolve(d.defaults)
	if err := preds.Validate(); err != nil {
		return nil, domain.Predicates{}, err
	}
	return domain.Filter(snap.Incidents, preds), preds, nil
}

// Forecast projects citywide monthly totals over the unfiltered snapshot.
func (s *Service) Forecast(ctx context.Context) (*ForecastResult, error) {
	snap, d, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	points, err := domain.ForecastMonthly(s.model, d.monthly)
	if err != nil {
		return nil, err
	}
	return &ForecastResult{
		SnapshotID: snap.ID,
		Model:      s.model.Name(),
		History:    d.monthly,
		Forecast:   points,
	}, nil
}

// Refresh discards the cached snapshot and every memoized view, then ingests
// again.
func (s *Service) Refresh(ctx context.Context) (*SnapshotInfo, error) {
	s.snapshots.Invalidate()
	s.views.purge()
	s.mu.Lock()
	s.derived = nil
	s.mu.Unlock()

	snap, _, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	si := info(snap)
	s.logger.Info("snapshot refreshed", "snapshot_id", snap.ID, "records", si.TotalRecords)
	return &si, nil
}

// current returns the snapshot and its derived values, recomputing them when
// the snapshot has changed.
func (s *Service) current(ctx context.Context) (*domain.Snapshot, *derived, error) {
	snap, err := s.snapshots.Get(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.derived == nil || s.derived.snapshotID != snap.ID {
		s.derived = &derived{
			snapshotID: snap.ID,
			options:    domain.ObserveOptions(snap.Incidents),
			defaults:   domain.DefaultPredicates(snap.Incidents),
			monthly:    domain.MonthlySeries(snap.Incidents),
		}
	}
	return snap, s.derived, nil
}

func info(snap *domain.Snapshot) SnapshotInfo {
	return SnapshotInfo{
		SnapshotID:           snap.ID,
		Source:               snap.Source,
		Scope:                snap.Scope.String(),
		FetchedAt:            snap.FetchedAt,
		TotalRecords:         len(snap.Incidents),
		Fetched:              snap.Fetched,
		Dropped:              snap.Dropped,
		UnknownNeighborhoods: snap.UnknownNeighborhoods,
	}
}
