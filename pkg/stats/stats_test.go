package stats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/medreza/honcho-benefit-service/pkg/catalog"
	"github.com/medreza/honcho-benefit-service/pkg/ledger"
	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository/memory"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func seed(t *testing.T) (*memory.Store, *Aggregator) {
	t.Helper()
	store := memory.New()
	yesterday := now.Add(-24 * time.Hour)

	store.PutMember(models.Member{ID: "m1", Status: models.MemberStatusActive, AssociationID: "A1"})
	store.PutMember(models.Member{ID: "m-orphan", Status: models.MemberStatusActive})

	store.PutBenefit(models.Benefit{ID: "b1", Status: models.BenefitStatusActive, Associations: []string{"A1"}})
	store.PutBenefit(models.Benefit{ID: "b2", Status: models.BenefitStatusActive, Associations: []string{"A1"}, ValidUntil: &yesterday})
	store.PutBenefit(models.Benefit{ID: "b3", Status: models.BenefitStatusInactive, Associations: []string{"A1"}})
	store.PutBenefit(models.Benefit{ID: "b4", Status: models.BenefitStatusActive, Associations: []string{"A2"}})

	l := ledger.NewWithClock(store, clock)
	for _, r := range []models.RedemptionRecord{
		{MemberID: "m1", BenefitID: "b1", Category: "food", DiscountAmount: 250},
		{MemberID: "m1", BenefitID: "b1", Category: "food", DiscountAmount: 300},
		{MemberID: "m1", BenefitID: "b2", DiscountAmount: 1000},
		{MemberID: "m2", BenefitID: "b1", Category: "food", DiscountAmount: 999},
	} {
		if _, err := l.Record(context.Background(), r, 0); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	agg := NewAggregator(store, catalog.NewWithClock(store, nil, clock), l)
	return store, agg
}

func TestGetAggregatesLedgerAndCatalog(t *testing.T) {
	_, agg := seed(t)

	got := agg.Get(context.Background(), "m1")
	if got.Total != 3 {
		t.Fatalf("expected total 3, got %d", got.Total)
	}
	if got.Available != 1 {
		t.Fatalf("expected available 1, got %d", got.Available)
	}
	if got.Expired != 1 {
		t.Fatalf("expected expired 1, got %d", got.Expired)
	}
	if got.Used != 3 {
		t.Fatalf("expected used 3, got %d", got.Used)
	}
	if got.SavingsTotal != 1550 {
		t.Fatalf("expected savings 1550, got %d", got.SavingsTotal)
	}
	if got.ByCategory["food"] != 2 || got.ByCategory["other"] != 1 {
		t.Fatalf("unexpected categories %v", got.ByCategory)
	}
}

func TestGetReturnsZeroOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		memberID string
		fail     error
	}{
		{name: "unknown member", memberID: "ghost"},
		{name: "member without association", memberID: "m-orphan"},
		{name: "store failure", memberID: "m1", fail: errors.New("timeout")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, agg := seed(t)
			if tt.fail != nil {
				store.Fail(tt.fail)
			}

			got := agg.Get(context.Background(), tt.memberID)
			if got.Total != 0 || got.Used != 0 || got.SavingsTotal != 0 || got.Available != 0 {
				t.Fatalf("expected zeroed stats, got %+v", got)
			}
			if got.ByCategory == nil {
				t.Fatal("expected non-nil category map")
			}
		})
	}
}

func TestGetCountsBeyondHistoryPage(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.PutMember(models.Member{ID: "m1", Status: models.MemberStatusActive, AssociationID: "A1"})

	yesterday := now.Add(-24 * time.Hour)
	benefits := ledger.MaxHistoryLimit + 60
	for i := 0; i < benefits; i++ {
		b := models.Benefit{ID: fmt.Sprintf("b%03d", i), Status: models.BenefitStatusActive, Associations: []string{"A1"}}
		if i%2 == 0 {
			b.ValidUntil = &yesterday
		}
		store.PutBenefit(b)
	}

	l := ledger.NewWithClock(store, clock)
	redemptions := ledger.MaxHistoryLimit + 50
	for i := 0; i < redemptions; i++ {
		rec := models.RedemptionRecord{MemberID: "m1", BenefitID: "b001", DiscountAmount: 100}
		if i%5 == 0 {
			rec.Category = "food"
		}
		if _, err := l.Record(ctx, rec, 0); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	agg := NewAggregator(store, catalog.NewWithClock(store, nil, clock), l)
	got := agg.Get(ctx, "m1")

	if got.Total != benefits {
		t.Fatalf("expected total %d, got %d", benefits, got.Total)
	}
	if got.Expired != benefits/2 {
		t.Fatalf("expected expired %d, got %d", benefits/2, got.Expired)
	}
	if got.Used != redemptions {
		t.Fatalf("expected used %d, got %d", redemptions, got.Used)
	}
	if got.SavingsTotal != int64(redemptions)*100 {
		t.Fatalf("expected savings %d, got %d", redemptions*100, got.SavingsTotal)
	}
	if got.ByCategory["food"] != redemptions/5 || got.ByCategory["other"] != redemptions-redemptions/5 {
		t.Fatalf("unexpected categories %v", got.ByCategory)
	}
}
