package chi

import (
	"context"
	"net/http/httptest"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/orbital-cloud/usagemeter/internal/domain"
	healthuc "github.com/orbital-cloud/usagemeter/internal/usecase/health"
	usageuc "github.com/orbital-cloud/usagemeter/internal/usecase/usage"
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

// newTestServer wires the handlers behind a chi router with mocked
// upstreams and persistence disabled.
func newTestServer(t *testing.T, messages *mockMessageSource, reports *mockReportResolver) *httptest.Server {
	t.Helper()

	logger := zap.NewNop()
	usage := usageuc.New(messages, reports, logger)
	srv := NewServer(usage, nil, healthuc.New(nil), logger)

	r := chirouter.NewRouter()
	srv.Routes(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func int64Ptr(v int64) *int64 { return &v }
