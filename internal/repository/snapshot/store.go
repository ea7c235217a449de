// Package snapshot persists daily usage snapshots for analytics and
// historical tracking.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orbital-cloud/usagemeter/internal/domain"
	"github.com/orbital-cloud/usagemeter/internal/domain/credits"
)

// store is the consumer interface for snapshot persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Snapshot is one persisted usage row.
type Snapshot struct {
	ID           string         `json:"id"`
	SnapshotDate string         `json:"snapshot_date"` // YYYY-MM-DD, UTC
	MessageID    int64          `json:"message_id"`
	Timestamp    string         `json:"timestamp"`
	ReportName   string         `json:"report_name,omitempty"`
	CreditsUsed  credits.Amount `json:"credits_used"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Store implements snapshot persistence on top of the KV store.
// Keys follow the pattern {prefix}snapshot:{date}:{uuid}.
type Store struct {
	store     store
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

// New creates a snapshot store. ttl bounds how long history is retained.
func New(s store, keyPrefix string, ttl time.Duration) *Store {
	return &Store{
		store:     s,
		keyPrefix: keyPrefix + "snapshot:",
		ttl:       ttl,
		now:       time.Now,
	}
}

// WithClock overrides the clock (test-only).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Record persists one snapshot per usage item under today's date.
func (s *Store) Record(ctx context.Context, items []domain.UsageItem) error {
	now := s.now().UTC()
	date := now.Format(time.DateOnly)

	for _, item := range items {
		snap := Snapshot{
			ID:           uuid.NewString(),
			SnapshotDate: date,
			MessageID:    item.MessageID,
			Timestamp:    item.Timestamp,
			ReportName:   item.ReportName,
			CreditsUsed:  item.CreditsUsed,
			CreatedAt:    now,
		}

		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot for message %d: %w", item.MessageID, err)
		}

		key := s.keyPrefix + date + ":" + snap.ID
		if err := s.store.SetWithTTL(ctx, key, data, s.ttl); err != nil {
			return fmt.Errorf("snapshot SET %s: %w", key, err)
		}
	}

	return nil
}

// ListByDate returns all snapshots recorded on the given date (YYYY-MM-DD).
// Returns an empty slice when none exist.
func (s *Store) ListByDate(ctx context.Context, date string) ([]Snapshot, error) {
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return nil, fmt.Errorf("date must be YYYY-MM-DD, got %q: %w", date, domain.ErrInvalidInput)
	}

	keys, err := s.store.Scan(ctx, s.keyPrefix+date+":*")
	if err != nil {
		return nil, fmt.Errorf("snapshot SCAN for %s: %w", date, err)
	}

	snaps := make([]Snapshot, 0, len(keys))
	for _, key := range keys {
		data, err := s.store.Get(ctx, key)
		if err != nil {
			// Expired between SCAN and GET; skip.
			continue
		}

		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
		}
		snaps = append(snaps, snap)
	}

	return snaps, nil
}
