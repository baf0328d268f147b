package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
	"github.com/couchcryptid/sf-incident-analytics/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Ingester produces a fresh snapshot on demand.
type Ingester interface {
	Ingest(ctx context.Context) (*domain.Snapshot, error)
	Source() string
	Scope() domain.Scope
}

// ingestion is one in-flight Ingest shared by every caller that misses the
// cache while it runs.
type ingestion struct {
	key  string
	done chan struct{}
	snap *domain.Snapshot
	err  error
}

// SnapshotCache holds the most recent snapshot, keyed by source, scope and
// the TTL bucket the snapshot was ingested in. When the bucket rolls over
// the next Get ingests again. Failed ingestions are never cached.
//
// Ingestion runs detached from the caller, bounded by ingestTimeout, so a
// caller that gives up does not abort the fetch other callers are waiting on.
type SnapshotCache struct {
	ingester      Ingester
	ttl           time.Duration
	ingestTimeout time.Duration
	clock         clockwork.Clock
	logger        *slog.Logger
	metrics       *observability.Metrics

	mu       sync.Mutex
	key      string
	snap     *domain.Snapshot
	inflight *ingestion
}

// NewSnapshotCache wraps an ingester with a TTL-bucketed cache.
func NewSnapshotCache(ing Ingester, ttl, ingestTimeout time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *SnapshotCache {
	return &SnapshotCache{
		ingester:      ing,
		ttl:           ttl,
		ingestTimeout: ingestTimeout,
		clock:         clock,
		logger:        logger,
		metrics:       metrics,
	}
}

// Get returns the cached snapshot for the current bucket, ingesting if none
// is held. Concurrent callers share a single ingestion. Get returns early
// with ctx.Err() when ctx ends first; the ingestion carries on and its
// result is cached for the next caller.
func (c *SnapshotCache) Get(ctx context.Context) (*domain.Snapshot, error) {
	c.mu.Lock()
	key := c.currentKey()
	if c.snap != nil && c.key == key {
		snap := c.snap
		c.mu.Unlock()
		c.metrics.SnapshotCache.WithLabelValues("hit").Inc()
		return snap, nil
	}
	c.metrics.SnapshotCache.WithLabelValues("miss").Inc()

	in := c.inflight
	if in == nil || in.key != key {
		in = &ingestion{key: key, done: make(chan struct{})}
		c.inflight = in
		go c.run(context.WithoutCancel(ctx), in)
	}
	c.mu.Unlock()

	select {
	case <-in.done:
		return in.snap, in.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *SnapshotCache) run(ctx context.Context, in *ingestion) {
	ctx, cancel := context.WithTimeout(ctx, c.ingestTimeout)
	defer cancel()

	snap, err := c.ingester.Ingest(ctx)

	c.mu.Lock()
	// An Invalidate while this ran detaches it; the result is still handed
	// to its waiters but not cached.
	if c.inflight == in {
		c.inflight = nil
		if err == nil {
			c.key = in.key
			c.snap = snap
			c.logger.Debug("snapshot cached", "snapshot_id", snap.ID, "key", in.key)
		}
	}
	c.mu.Unlock()

	in.snap, in.err = snap, err
	close(in.done)
}

// Peek returns the cached snapshot without ingesting, or nil.
func (c *SnapshotCache) Peek() *domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Invalidate discards the cached snapshot. An ingestion already running is
// not cached when it completes.
func (c *SnapshotCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
	c.key = ""
	c.inflight = nil
	c.logger.Info("snapshot cache invalidated")
}

func (c *SnapshotCache) currentKey() string {
	bucket := c.clock.Now().UTC().Truncate(c.ttl)
	return fmt.Sprintf("%s|%s|%d", c.ingester.Source(), c.ingester.Scope(), bucket.Unix())
}
