package reportcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/orbital-cloud/usagemeter/internal/domain"
)

// mockFetcher implements Fetcher with per-id results and a call counter.
type mockFetcher struct {
	mu      sync.Mutex
	reports map[int64]domain.Report
	errs    map[int64]error
	calls   map[int64]int
	// block, when non-nil, is closed by the test to release in-flight fetches.
	block chan struct{}
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		reports: make(map[int64]domain.Report),
		errs:    make(map[int64]error),
		calls:   make(map[int64]int),
	}
}

func (m *mockFetcher) GetReport(ctx context.Context, id int64) (domain.Report, error) {
	m.mu.Lock()
	m.calls[id]++
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.Report{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[id]; ok {
		return domain.Report{}, err
	}
	return m.reports[id], nil
}

func (m *mockFetcher) callCount(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id]
}

// mockPersister implements the write-through store interface.
type mockPersister struct {
	mu   sync.Mutex
	sets map[string][]byte
	err  error
}

func newMockPersister() *mockPersister {
	return &mockPersister{sets: make(map[string][]byte)}
}

func (m *mockPersister) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sets[key] = value
	return nil
}

func newTestCache(t *testing.T, fetcher Fetcher) *Cache {
	t.Helper()
	return New(fetcher, nil, zap.NewNop())
}
