package usage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/orbital-cloud/usagemeter/internal/domain"
)

func TestAggregate_PreservesMessageOrder(t *testing.T) {
	messages := []domain.Message{
		{ID: 3, Timestamp: "2024-04-29T03:25:03.613Z", Text: "Hi"},
		{ID: 1, Timestamp: "2024-04-29T02:08:29.375Z", Text: "Hello"},
		{ID: 2, Timestamp: "2024-04-29T02:55:00.000Z", Text: "Hey"},
	}
	svc := New(
		&mockMessageSource{getMessagesFn: func(context.Context) ([]domain.Message, error) {
			return messages, nil
		}},
		&mockReportResolver{batchGetFn: func(context.Context, []int64) map[int64]domain.Report {
			return nil
		}},
		zap.NewNop(),
	)

	items, err := svc.Aggregate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	for i, wantID := range []int64{3, 1, 2} {
		if items[i].MessageID != wantID {
			t.Errorf("items[%d].MessageID = %d, want %d (fetch order)", i, items[i].MessageID, wantID)
		}
	}
}

func TestAggregate_ReportBackedMessage(t *testing.T) {
	messages := []domain.Message{
		{ID: 1, Timestamp: "2024-04-29T02:08:29.375Z", Text: "Generate the report", ReportID: int64Ptr(5392)},
	}
	svc := New(
		&mockMessageSource{getMessagesFn: func(context.Context) ([]domain.Message, error) {
			return messages, nil
		}},
		&mockReportResolver{batchGetFn: func(_ context.Context, ids []int64) map[int64]domain.Report {
			if len(ids) != 1 || ids[0] != 5392 {
				t.Errorf("BatchGet ids = %v, want [5392]", ids)
			}
			return map[int64]domain.Report{5392: {ID: 5392, Name: "Tenant Obligations Report", CreditCost: 25}}
		}},
		zap.NewNop(),
	)

	items, err := svc.Aggregate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items[0].ReportName != "Tenant Obligations Report" {
		t.Errorf("ReportName = %q", items[0].ReportName)
	}
	if got := items[0].CreditsUsed.String(); got != "25.00" {
		t.Errorf("CreditsUsed = %s, want 25.00", got)
	}
}

func TestAggregate_EstimateFallback(t *testing.T) {
	messages := []domain.Message{
		{ID: 1, Timestamp: "2024-04-29T02:08:29.375Z", Text: strings.Repeat("a", 400), ReportID: int64Ptr(404)},
	}
	svc := New(
		&mockMessageSource{getMessagesFn: func(context.Context) ([]domain.Message, error) {
			return messages, nil
		}},
		&mockReportResolver{batchGetFn: func(context.Context, []int64) map[int64]domain.Report {
			return nil // report 404 unresolved
		}},
		zap.NewNop(),
	)

	items, err := svc.Aggregate(context.Background())
	if err != nil {
		t.Fatalf("estimate policy must absorb the failure: %v", err)
	}
	if items[0].ReportName != "" {
		t.Errorf("ReportName = %q, want empty for unresolved report", items[0].ReportName)
	}
	if got := items[0].CreditsUsed.String(); got != "40.00" {
		t.Errorf("CreditsUsed = %s, want 40.00 (text billing)", got)
	}
}

func TestAggregate_FailPolicy(t *testing.T) {
	messages := []domain.Message{
		{ID: 1, Timestamp: "2024-04-29T02:08:29.375Z", Text: "x", ReportID: int64Ptr(404)},
	}
	svc := New(
		&mockMessageSource{getMessagesFn: func(context.Context) ([]domain.Message, error) {
			return messages, nil
		}},
		&mockReportResolver{batchGetFn: func(context.Context, []int64) map[int64]domain.Report {
			return nil
		}},
		zap.NewNop(),
	).WithFallbackPolicy(FallbackFail)

	_, err := svc.Aggregate(context.Background())
	if !errors.Is(err, domain.ErrReportUnresolved) {
		t.Fatalf("expected ErrReportUnresolved, got %v", err)
	}
}

func TestAggregate_MessageFetchFailure(t *testing.T) {
	svc := New(
		&mockMessageSource{getMessagesFn: func(context.Context) ([]domain.Message, error) {
			return nil, domain.ErrUpstream
		}},
		&mockReportResolver{batchGetFn: func(context.Context, []int64) map[int64]domain.Report {
			t.Error("BatchGet must not be called when message fetch fails")
			return nil
		}},
		zap.NewNop(),
	)

	_, err := svc.Aggregate(context.Background())
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestAggregate_NoMessages(t *testing.T) {
	svc := New(
		&mockMessageSource{getMessagesFn: func(context.Context) ([]domain.Message, error) {
			return nil, nil
		}},
		&mockReportResolver{batchGetFn: func(_ context.Context, ids []int64) map[int64]domain.Report {
			if len(ids) != 0 {
				t.Errorf("BatchGet ids = %v, want empty", ids)
			}
			return nil
		}},
		zap.NewNop(),
	)

	items, err := svc.Aggregate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("len(items) = %d, want 0", len(items))
	}
}

func TestAggregate_RecordsSnapshots(t *testing.T) {
	recorder := &mockSnapshotRecorder{}
	svc := New(
		&mockMessageSource{getMessagesFn: func(context.Context) ([]domain.Message, error) {
			return []domain.Message{{ID: 1, Timestamp: "2024-04-29T02:08:29.375Z", Text: "Hi"}}, nil
		}},
		&mockReportResolver{batchGetFn: func(context.Context, []int64) map[int64]domain.Report {
			return nil
		}},
		zap.NewNop(),
	).WithSnapshots(recorder)

	if _, err := svc.Aggregate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.recorded) != 1 || len(recorder.recorded[0]) != 1 {
		t.Fatalf("recorded = %v, want one batch of one item", recorder.recorded)
	}
}

func TestAggregate_SnapshotFailureIsBestEffort(t *testing.T) {
	recorder := &mockSnapshotRecorder{err: errors.New("redis down")}
	svc := New(
		&mockMessageSource{getMessagesFn: func(context.Context) ([]domain.Message, error) {
			return []domain.Message{{ID: 1, Timestamp: "2024-04-29T02:08:29.375Z", Text: "Hi"}}, nil
		}},
		&mockReportResolver{batchGetFn: func(context.Context, []int64) map[int64]domain.Report {
			return nil
		}},
		zap.NewNop(),
	).WithSnapshots(recorder)

	items, err := svc.Aggregate(context.Background())
	if err != nil {
		t.Fatalf("snapshot failure must not surface: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
}

func TestParseFallbackPolicy(t *testing.T) {
	for _, name := range []string{"estimate", "fail"} {
		policy, err := ParseFallbackPolicy(name)
		if err != nil {
			t.Errorf("ParseFallbackPolicy(%q): %v", name, err)
		}
		if string(policy) != name {
			t.Errorf("ParseFallbackPolicy(%q) = %q", name, policy)
		}
	}
	if _, err := ParseFallbackPolicy("retry"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown policy, got %v", err)
	}
}
