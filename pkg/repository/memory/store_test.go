package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
)

func TestFindActiveBenefitsOrderAndIndex(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s.PutBenefit(models.Benefit{ID: "old", Status: models.BenefitStatusActive, Associations: []string{"A1"}, CreatedAt: base})
	s.PutBenefit(models.Benefit{ID: "new", Status: models.BenefitStatusActive, Associations: []string{"A1"}, CreatedAt: base.Add(time.Hour)})
	s.PutBenefit(models.Benefit{ID: "off", Status: models.BenefitStatusInactive, Associations: []string{"A1"}, CreatedAt: base})
	s.PutBenefit(models.Benefit{ID: "other", Status: models.BenefitStatusActive, Associations: []string{"A2"}, CreatedAt: base})

	got, err := s.FindActiveBenefits(ctx, "A1", 10)
	if err != nil {
		t.Fatalf("FindActiveBenefits returned error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "old" {
		t.Fatalf("expected [new old], got %+v", got)
	}

	counts, err := s.CountBenefitsByAssociation(ctx, "A1", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("CountBenefitsByAssociation returned error: %v", err)
	}
	if counts.Total != 3 || counts.Expired != 0 {
		t.Fatalf("expected 3 benefits and none expired for A1, got %+v", counts)
	}

	s.DropIndex()
	if _, err := s.FindActiveBenefits(ctx, "A1", 10); !errors.Is(err, repository.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
	scanned, err := s.ScanBenefits(ctx, 2)
	if err != nil || len(scanned) != 2 {
		t.Fatalf("expected 2 scanned benefits, got %d (err %v)", len(scanned), err)
	}
}

func TestAppendRedemptionLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec := func(id string) *models.RedemptionRecord {
		return &models.RedemptionRecord{ID: id, BenefitID: "b1", MemberID: "m1", Outcome: models.RedemptionSucceeded}
	}

	if err := s.AppendRedemption(ctx, rec("r1"), 2); err != nil {
		t.Fatalf("first append returned error: %v", err)
	}
	if err := s.AppendRedemption(ctx, rec("r2"), 2); err != nil {
		t.Fatalf("second append returned error: %v", err)
	}
	if err := s.AppendRedemption(ctx, rec("r3"), 2); !errors.Is(err, repository.ErrUsageLimitReached) {
		t.Fatalf("expected ErrUsageLimitReached, got %v", err)
	}
	if err := s.AppendRedemption(ctx, rec("r4"), 0); err != nil {
		t.Fatalf("unlimited append returned error: %v", err)
	}

	n, err := s.CountRedemptions(ctx, "b1", "m1")
	if err != nil || n != 3 {
		t.Fatalf("expected 3 redemptions, got %d (err %v)", n, err)
	}
}

func TestFailAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.GetMember(ctx, "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.IncrementBenefitUsage(ctx, "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	boom := errors.New("boom")
	s.Fail(boom)
	if _, err := s.ListRedemptions(ctx, "m1", 10); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	s.Fail(nil)
	if _, err := s.ListRedemptions(ctx, "m1", 10); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
}

func TestSummarizeRedemptions(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, r := range []models.RedemptionRecord{
		{ID: "r1", MemberID: "m1", Category: "food", DiscountAmount: 200, Outcome: models.RedemptionSucceeded},
		{ID: "r2", MemberID: "m1", DiscountAmount: 50, Outcome: models.RedemptionSucceeded},
		{ID: "r3", MemberID: "m1", Category: "food", DiscountAmount: 999, Outcome: "failed"},
		{ID: "r4", MemberID: "m2", Category: "food", DiscountAmount: 999, Outcome: models.RedemptionSucceeded},
	} {
		if err := s.AppendRedemption(ctx, &r, 0); err != nil {
			t.Fatalf("AppendRedemption returned error: %v", err)
		}
	}

	got, err := s.SummarizeRedemptions(ctx, "m1")
	if err != nil {
		t.Fatalf("SummarizeRedemptions returned error: %v", err)
	}
	if got.Count != 2 || got.SavingsTotal != 250 {
		t.Fatalf("expected 2 redemptions worth 250, got %+v", got)
	}
	if got.ByCategory["food"] != 1 || got.ByCategory[""] != 1 {
		t.Fatalf("unexpected categories %v", got.ByCategory)
	}
}
