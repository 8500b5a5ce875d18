package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medreza/honcho-benefit-service/pkg/models"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

type Store interface {
	AppendRedemption(ctx context.Context, rec *models.RedemptionRecord, perMemberLimit int) error
	CountRedemptions(ctx context.Context, benefitID, memberID string) (int, error)
	ListRedemptions(ctx context.Context, memberID string, limit int) ([]models.RedemptionRecord, error)
	SummarizeRedemptions(ctx context.Context, memberID string) (models.RedemptionSummary, error)
}

// Ledger is the append-only record of successful redemptions.
type Ledger struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Ledger {
	return NewWithClock(store, time.Now)
}

func NewWithClock(store Store, now func() time.Time) *Ledger {
	return &Ledger{store: store, now: now}
}

// Record appends a successful redemption. With perMemberLimit > 0 the store refuses the
// append with repository.ErrUsageLimitReached once the member holds that many records
// for the benefit. Retrying a failed call may write a second record.
func (l *Ledger) Record(ctx context.Context, rec models.RedemptionRecord, perMemberLimit int) (*models.RedemptionRecord, error) {
	rec.ID = uuid.NewString()
	rec.Outcome = models.RedemptionSucceeded
	if rec.RedeemedAt.IsZero() {
		rec.RedeemedAt = l.now().UTC()
	}

	if err := l.store.AppendRedemption(ctx, &rec, perMemberLimit); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *Ledger) CountSuccessful(ctx context.Context, benefitID, memberID string) (int, error) {
	n, err := l.store.CountRedemptions(ctx, benefitID, memberID)
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return n, nil
}

// Summarize totals every successful redemption of the member, not just a history page.
func (l *Ledger) Summarize(ctx context.Context, memberID string) (models.RedemptionSummary, error) {
	summary, err := l.store.SummarizeRedemptions(ctx, memberID)
	if err != nil {
		return models.RedemptionSummary{}, fmt.Errorf("failed to summarize redemptions: %w", err)
	}
	if summary.ByCategory == nil {
		summary.ByCategory = make(map[string]int)
	}
	return summary, nil
}

// History lists a member's redemptions, most recent first.
func (l *Ledger) History(ctx context.Context, memberID string, limit int) ([]models.RedemptionRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	records, err := l.store.ListRedemptions(ctx, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if records == nil {
		records = make([]models.RedemptionRecord, 0)
	}
	return records, nil
}
