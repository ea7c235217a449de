// Package reportcache resolves report identifiers to report data while
// minimizing upstream calls: process-lifetime in-memory cache, per-key
// request coalescing across concurrent callers, and concurrent batch
// lookup with partial-failure tolerance.
package reportcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/orbital-cloud/usagemeter/internal/domain"
)

// Fetcher is the consumer interface for the upstream report endpoint (ISP).
type Fetcher interface {
	GetReport(ctx context.Context, id int64) (domain.Report, error)
}

// persister is the consumer interface for the persisted TTL cache (ISP).
// Write-through only: the persisted copy is never read on the hot path.
type persister interface {
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// call is one in-flight upstream fetch shared by concurrent callers.
type call struct {
	done   chan struct{}
	report domain.Report
	err    error
}

// Cache is the report fetch cache. Entries live for the process lifetime;
// there is no eviction, expiry, or invalidation. A failed fetch leaves the
// cache unmodified (no negative caching) and releases its in-flight slot,
// so later callers retry fresh.
type Cache struct {
	fetcher Fetcher

	mu       sync.Mutex
	entries  map[int64]domain.Report
	inflight map[int64]*call

	persist    persister
	persistKey string
	persistTTL time.Duration

	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a report cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(fetcher Fetcher, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{
		fetcher:    fetcher,
		entries:    make(map[int64]domain.Report),
		inflight:   make(map[int64]*call),
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// WithPersistence enables best-effort write-through to a persisted TTL
// cache. Persisted entries exist for warm-start and observability; the
// in-memory contract is unchanged.
func (c *Cache) WithPersistence(store persister, keyPrefix string, ttl time.Duration) *Cache {
	c.persist = store
	c.persistKey = keyPrefix + "report_cache:"
	c.persistTTL = ttl
	return c
}

// Get resolves a single report. Cache hit: no upstream call. Miss: one
// upstream fetch, stored under id on success. Concurrent callers for the
// same uncached id share one upstream call and one result.
func (c *Cache) Get(ctx context.Context, id int64) (domain.Report, error) {
	c.mustInit()

	c.mu.Lock()
	if report, ok := c.entries[id]; ok {
		c.mu.Unlock()
		c.incCache("hit")
		return report, nil
	}
	if cl, ok := c.inflight[id]; ok {
		c.mu.Unlock()
		select {
		case <-cl.done:
			return cl.report, cl.err
		case <-ctx.Done():
			return domain.Report{}, fmt.Errorf("wait for report %d: %w", id, ctx.Err())
		}
	}
	cl := &call{done: make(chan struct{})}
	c.inflight[id] = cl
	c.mu.Unlock()

	c.incCache("miss")

	report, err := c.fetcher.GetReport(ctx, id)
	if err != nil {
		err = fmt.Errorf("fetch report %d: %w", id, err)
	}

	c.mu.Lock()
	if err == nil {
		c.entries[id] = report
	}
	delete(c.inflight, id)
	c.mu.Unlock()

	cl.report, cl.err = report, err
	close(cl.done)

	if err != nil {
		return domain.Report{}, err
	}

	c.persistReport(ctx, report)
	return report, nil
}

// BatchGet resolves a set of report ids. Input order and repetition are
// irrelevant; uncached ids are fetched concurrently, one call per distinct
// id. Ids whose fetch failed are absent from the result, never an error
// entry.
func (c *Cache) BatchGet(ctx context.Context, ids []int64) map[int64]domain.Report {
	c.mustInit()

	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	result := make(map[int64]domain.Report, len(unique))
	uncached := make([]int64, 0, len(unique))

	c.mu.Lock()
	for _, id := range unique {
		if report, ok := c.entries[id]; ok {
			result[id] = report
		} else {
			uncached = append(uncached, id)
		}
	}
	c.mu.Unlock()

	for range result {
		c.incCache("hit")
	}

	if len(uncached) == 0 {
		return result
	}

	c.logger.Info("Fetching uncached reports", zap.Int("count", len(uncached)))

	var (
		wg    sync.WaitGroup
		resMu sync.Mutex
	)
	for _, id := range uncached {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()

			report, err := c.Get(ctx, id)
			if err != nil {
				// Partial-failure tolerance: a failed id never aborts siblings.
				c.logger.Warn("Report fetch failed", zap.Int64("report_id", id), zap.Error(err))
				return
			}

			resMu.Lock()
			result[id] = report
			resMu.Unlock()
		}(id)
	}
	wg.Wait()

	return result
}

// Len returns the number of cached reports.
func (c *Cache) Len() int {
	c.mustInit()
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) persistReport(ctx context.Context, report domain.Report) {
	if c.persist == nil {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn("Failed to encode report for persisted cache",
			zap.Int64("report_id", report.ID), zap.Error(err))
		return
	}

	key := c.persistKey + strconv.FormatInt(report.ID, 10)
	if err := c.persist.SetWithTTL(ctx, key, data, c.persistTTL); err != nil {
		c.logger.Warn("Failed to persist report", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// mustInit guards against use of a zero-value Cache, which is a
// programming-contract violation.
func (c *Cache) mustInit() {
	if c.entries == nil {
		panic("reportcache: use of uninitialized Cache, construct with New")
	}
}
