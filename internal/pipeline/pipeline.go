package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
	"github.com/couchcryptid/sf-incident-analytics/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Extractor reads every raw incident from a source. A failed extraction
// returns an error and no partial data.
type Extractor interface {
	Extract(ctx context.Context) ([]domain.RawIncident, error)
	Describe() string
}

// Publisher receives each new snapshot after a successful ingestion.
type Publisher interface {
	Publish(ctx context.Context, snap *domain.Snapshot) error
}

// Pipeline runs the fetch-normalize ingestion.
type Pipeline struct {
	extractor Extractor
	publisher Publisher
	scope     domain.Scope
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	ready     atomic.Bool

	publishing sync.WaitGroup
}

// New creates a Pipeline. publisher may be nil.
func New(e Extractor, pub Publisher, scope domain.Scope, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Pipeline {
	return &Pipeline{
		extractor: e,
		publisher: pub,
		scope:     scope,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
	}
}

// Source describes the configured extractor.
func (p *Pipeline) Source() string { return p.extractor.Describe() }

// Scope returns the configured ingestion scope.
func (p *Pipeline) Scope() domain.Scope { return p.scope }

// CheckReadiness returns nil once a snapshot has been ingested successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no incident snapshot has been ingested yet")
	}
	return nil
}

// Ingest fetches every raw record, normalizes it and restricts it to the
// scope. Source failures yield ErrSourceUnavailable; a source with no
// retained records yields ErrNoIncidents.
func (p *Pipeline) Ingest(ctx context.Context) (*domain.Snapshot, error) {
	start := p.clock.Now()
	source := p.extractor.Describe()
	p.logger.Info("ingestion started", "source", source, "scope", p.scope.String())

	raws, err := p.extractor.Extract(ctx)
	if err != nil {
		p.metrics.IngestRuns.WithLabelValues("unavailable").Inc()
		p.logger.Error("ingestion failed", "source", source, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}

	incidents, dropped := domain.Normalize(raws, p.scope)
	for reason, n := range dropped {
		p.metrics.RecordsDropped.WithLabelValues(string(reason)).Add(float64(n))
	}

	if len(incidents) == 0 {
		p.metrics.IngestRuns.WithLabelValues("empty").Inc()
		p.logger.Warn("no incidents retained", "source", source, "fetched", len(raws), "dropped", dropped.Total())
		return nil, domain.ErrNoIncidents
	}

	unknown := 0
	for i := range incidents {
		if !domain.IsAnalysisNeighborhood(incidents[i].Neighborhood) {
			unknown++
		}
	}
	if unknown > 0 {
		p.logger.Warn("incidents outside the analysis neighborhoods", "count", unknown)
	}

	snap := &domain.Snapshot{
		ID:                   uuid.NewString(),
		Source:               source,
		Scope:                p.scope,
		FetchedAt:            p.clock.Now().UTC(),
		Incidents:            incidents,
		Fetched:              len(raws),
		Dropped:              dropped,
		UnknownNeighborhoods: unknown,
	}

	elapsed := p.clock.Since(start)
	p.metrics.IngestRuns.WithLabelValues("success").Inc()
	p.metrics.IngestDuration.Observe(elapsed.Seconds())
	p.metrics.SnapshotRecords.Set(float64(len(incidents)))
	p.ready.Store(true)

	p.logger.Info("ingestion complete",
		"snapshot_id", snap.ID,
		"fetched", snap.Fetched,
		"retained", len(incidents),
		"dropped", dropped.Total(),
		"duration", elapsed,
	)

	p.publish(ctx, snap)
	return snap, nil
}

// publish hands the snapshot to the publisher in the background, detached
// from ctx's cancellation. Failures are logged and counted but never fail
// the ingestion.
func (p *Pipeline) publish(ctx context.Context, snap *domain.Snapshot) {
	if p.publisher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	p.publishing.Add(1)
	go func() {
		defer p.publishing.Done()
		if err := p.publisher.Publish(ctx, snap); err != nil {
			p.metrics.PublishErrors.Inc()
			p.logger.Error("publish snapshot failed", "snapshot_id", snap.ID, "error", err)
		}
	}()
}

// WaitPublished blocks until every background publish has finished or ctx
// ends.
func (p *Pipeline) WaitPublished(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.publishing.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
