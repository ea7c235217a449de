package usage

import (
	"context"

	"github.com/orbital-cloud/usagemeter/internal/domain"
)

// MessageSource fetches all messages for the current billing period.
type MessageSource interface {
	GetMessages(ctx context.Context) ([]domain.Message, error)
}

// ReportResolver resolves a set of report ids. Ids whose fetch failed are
// absent from the result.
type ReportResolver interface {
	BatchGet(ctx context.Context, ids []int64) map[int64]domain.Report
}

// SnapshotRecorder persists usage items for historical tracking.
type SnapshotRecorder interface {
	Record(ctx context.Context, items []domain.UsageItem) error
}
