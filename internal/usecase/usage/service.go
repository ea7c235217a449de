// Package usage aggregates per-message usage into the consolidated
// listing for the current billing period.
package usage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/orbital-cloud/usagemeter/internal/domain"
)

// FallbackPolicy controls billing for a message whose report could not be
// fetched.
type FallbackPolicy string

const (
	// FallbackEstimate bills the message by its text, as if it had no
	// report. Legacy behavior: the failure is absorbed and invisible to
	// the caller.
	FallbackEstimate FallbackPolicy = "estimate"
	// FallbackFail aborts the whole aggregation so the caller can retry
	// instead of receiving an estimated amount for a report-backed message.
	FallbackFail FallbackPolicy = "fail"
)

// ParseFallbackPolicy validates a policy name from configuration.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(s) {
	case FallbackEstimate, FallbackFail:
		return FallbackPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown fallback policy %q: %w", s, domain.ErrInvalidInput)
	}
}

// Service produces the ordered usage listing.
type Service struct {
	messages  MessageSource
	reports   ReportResolver
	snapshots SnapshotRecorder
	policy    FallbackPolicy
	logger    *zap.Logger
}

// New creates a usage service with the estimate fallback policy.
func New(messages MessageSource, reports ReportResolver, logger *zap.Logger) *Service {
	return &Service{
		messages: messages,
		reports:  reports,
		policy:   FallbackEstimate,
		logger:   logger,
	}
}

// WithFallbackPolicy configures the unresolved-report policy.
func (s *Service) WithFallbackPolicy(p FallbackPolicy) *Service {
	if p != "" {
		s.policy = p
	}
	return s
}

// WithSnapshots enables best-effort snapshot recording after each
// successful aggregation.
func (s *Service) WithSnapshots(r SnapshotRecorder) *Service {
	s.snapshots = r
	return s
}

// Aggregate builds the usage listing for the current billing period.
// The output preserves message fetch order regardless of report fetch
// completion order. A message fetch failure fails the whole aggregation;
// individual report failures are handled per the fallback policy.
func (s *Service) Aggregate(ctx context.Context) ([]domain.UsageItem, error) {
	messages, err := s.messages.GetMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	s.logger.Info("Fetched messages", zap.Int("count", len(messages)))

	reports := s.reports.BatchGet(ctx, reportIDs(messages))
	s.logger.Info("Resolved reports", zap.Int("count", len(reports)))

	items := make([]domain.UsageItem, 0, len(messages))
	for _, msg := range messages {
		var report *domain.Report
		if msg.ReportID != nil {
			if r, ok := reports[*msg.ReportID]; ok {
				report = &r
			} else if s.policy == FallbackFail {
				return nil, fmt.Errorf("report %d for message %d: %w",
					*msg.ReportID, msg.ID, domain.ErrReportUnresolved)
			}
			// estimate: bill by text, as if the message had no report
		}

		amount, err := domain.CreditsForMessage(msg, report)
		if err != nil {
			return nil, fmt.Errorf("credits for message %d: %w", msg.ID, err)
		}

		item := domain.UsageItem{
			MessageID:   msg.ID,
			Timestamp:   msg.Timestamp,
			CreditsUsed: amount,
		}
		if report != nil {
			item.ReportName = report.Name
		}
		items = append(items, item)
	}

	s.recordSnapshots(ctx, items)
	return items, nil
}

// reportIDs collects the distinct non-null report ids referenced by messages.
func reportIDs(messages []domain.Message) []int64 {
	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		if msg.ReportID != nil {
			ids = append(ids, *msg.ReportID)
		}
	}
	return ids
}

func (s *Service) recordSnapshots(ctx context.Context, items []domain.UsageItem) {
	if s.snapshots == nil || len(items) == 0 {
		return
	}
	if err := s.snapshots.Record(ctx, items); err != nil {
		s.logger.Warn("Failed to record usage snapshots", zap.Error(err))
	}
}
