package usage

import (
	"context"
	"sync"

	"github.com/orbital-cloud/usagemeter/internal/domain"
)

type mockMessageSource struct {
	getMessagesFn func(ctx context.Context) ([]domain.Message, error)
}

func (m *mockMessageSource) GetMessages(ctx context.Context) ([]domain.Message, error) {
	return m.getMessagesFn(ctx)
}

type mockReportResolver struct {
	batchGetFn func(ctx context.Context, ids []int64) map[int64]domain.Report
}

func (m *mockReportResolver) BatchGet(ctx context.Context, ids []int64) map[int64]domain.Report {
	return m.batchGetFn(ctx, ids)
}

type mockSnapshotRecorder struct {
	mu       sync.Mutex
	recorded [][]domain.UsageItem
	err      error
}

func (m *mockSnapshotRecorder) Record(_ context.Context, items []domain.UsageItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recorded = append(m.recorded, items)
	return nil
}

func int64Ptr(v int64) *int64 { return &v }
