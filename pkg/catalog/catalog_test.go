package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/medreza/honcho-benefit-service/pkg/cache"
	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
	"github.com/medreza/honcho-benefit-service/pkg/repository/memory"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func benefit(id, assoc string, createdAgo time.Duration) models.Benefit {
	return models.Benefit{
		ID:           id,
		MerchantID:   "s1",
		Title:        "Benefit " + id,
		Status:       models.BenefitStatusActive,
		Associations: []string{assoc},
		CreatedAt:    now.Add(-createdAgo),
	}
}

func ids(benefits []models.Benefit) []string {
	out := make([]string, len(benefits))
	for i, b := range benefits {
		out[i] = b.ID
	}
	return out
}

func TestListAvailableFiltersAndOrders(t *testing.T) {
	store := memory.New()
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	old := benefit("old", "A1", 3*time.Hour)
	fresh := benefit("fresh", "A1", time.Hour)
	inactive := benefit("inactive", "A1", time.Hour)
	inactive.Status = models.BenefitStatusInactive
	otherAssoc := benefit("other", "A2", time.Hour)
	expired := benefit("expired", "A1", time.Hour)
	expired.ValidUntil = &yesterday
	stillValid := benefit("valid", "A1", 2*time.Hour)
	stillValid.ValidUntil = &tomorrow

	for _, b := range []models.Benefit{old, fresh, inactive, otherAssoc, expired, stillValid} {
		store.PutBenefit(b)
	}

	c := NewWithClock(store, cache.NewLocal(cache.DefaultTTL), clock)
	got, err := c.ListAvailable(context.Background(), "m1", "A1")
	if err != nil {
		t.Fatalf("ListAvailable returned error: %v", err)
	}

	want := []string{"fresh", "valid", "old"}
	if fmt.Sprint(ids(got)) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
}

func TestListAvailableCapsIndexedQuery(t *testing.T) {
	store := memory.New()
	for i := 0; i < AvailableLimit+20; i++ {
		store.PutBenefit(benefit(fmt.Sprintf("b%03d", i), "A1", time.Duration(i)*time.Minute))
	}

	c := NewWithClock(store, nil, clock)
	got, err := c.ListAvailable(context.Background(), "m1", "A1")
	if err != nil {
		t.Fatalf("ListAvailable returned error: %v", err)
	}
	if len(got) != AvailableLimit {
		t.Fatalf("expected %d benefits, got %d", AvailableLimit, len(got))
	}
	if got[0].ID != "b000" {
		t.Fatalf("expected newest benefit first, got %s", got[0].ID)
	}
}

func TestListAvailableFallsBackWhenIndexMissing(t *testing.T) {
	store := memory.New()
	store.DropIndex()
	yesterday := now.Add(-24 * time.Hour)

	for i := 0; i < 70; i++ {
		assoc := "A1"
		if i%2 == 1 {
			assoc = "A2"
		}
		b := benefit(fmt.Sprintf("b%02d", i), assoc, time.Duration(i)*time.Minute)
		if i == 4 {
			b.ValidUntil = &yesterday
		}
		store.PutBenefit(b)
	}

	c := NewWithClock(store, nil, clock)
	got, err := c.ListAvailable(context.Background(), "m1", "A1")
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}

	// 50 scanned, 25 of those in A1, one expired.
	if len(got) != 24 {
		t.Fatalf("expected 24 benefits from the fallback scan, got %d", len(got))
	}
	for _, b := range got {
		if !b.EligibleFor("A1") || b.ExpiredAt(now) {
			t.Fatalf("fallback returned ineligible benefit %s", b.ID)
		}
	}
	if got[0].ID != "b00" {
		t.Fatalf("expected fallback results newest first, got %s", got[0].ID)
	}
}

func TestListAvailableServesCacheUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.PutBenefit(benefit("b1", "A1", time.Hour))

	c := NewWithClock(store, cache.NewLocal(cache.DefaultTTL), clock)
	if _, err := c.ListAvailable(ctx, "m1", "A1"); err != nil {
		t.Fatalf("ListAvailable returned error: %v", err)
	}

	store.PutBenefit(benefit("b2", "A1", time.Minute))
	got, _ := c.ListAvailable(ctx, "m1", "A1")
	if len(got) != 1 {
		t.Fatalf("expected cached listing with 1 benefit, got %v", ids(got))
	}

	if err := c.InvalidateAssociation(ctx, "A1"); err != nil {
		t.Fatalf("InvalidateAssociation returned error: %v", err)
	}
	got, _ = c.ListAvailable(ctx, "m1", "A1")
	if len(got) != 2 {
		t.Fatalf("expected fresh listing with 2 benefits, got %v", ids(got))
	}
}

func TestListAvailablePropagatesScanFailure(t *testing.T) {
	store := memory.New()
	boom := errors.New("connection reset")
	store.Fail(boom)

	c := NewWithClock(store, nil, clock)
	if _, err := c.ListAvailable(context.Background(), "m1", "A1"); !errors.Is(err, boom) {
		t.Fatalf("expected scan failure to surface, got %v", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	c := New(memory.New(), nil)
	if _, err := c.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAvailableDropsBenefitsExpiredSinceCached(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	closesSoon := benefit("closing", "A1", time.Hour)
	validUntil := now.Add(time.Minute)
	closesSoon.ValidUntil = &validUntil
	store.PutBenefit(closesSoon)
	store.PutBenefit(benefit("open", "A1", 2*time.Hour))

	current := now
	c := NewWithClock(store, cache.NewLocal(time.Hour), func() time.Time { return current })

	got, err := c.ListAvailable(ctx, "m1", "A1")
	if err != nil {
		t.Fatalf("ListAvailable returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 benefits before expiry, got %v", ids(got))
	}

	current = now.Add(2 * time.Minute)
	got, err = c.ListAvailable(ctx, "m1", "A1")
	if err != nil {
		t.Fatalf("ListAvailable returned error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "open" {
		t.Fatalf("expected only the open benefit from cache, got %v", ids(got))
	}
}

func TestCountForAssociation(t *testing.T) {
	store := memory.New()
	yesterday := now.Add(-24 * time.Hour)
	expired := benefit("expired", "A1", time.Hour)
	expired.ValidUntil = &yesterday
	inactive := benefit("inactive", "A1", time.Hour)
	inactive.Status = models.BenefitStatusInactive
	for _, b := range []models.Benefit{benefit("b1", "A1", time.Hour), expired, inactive, benefit("b2", "A2", time.Hour)} {
		store.PutBenefit(b)
	}

	counts, err := NewWithClock(store, nil, clock).CountForAssociation(context.Background(), "A1")
	if err != nil {
		t.Fatalf("CountForAssociation returned error: %v", err)
	}
	if counts.Total != 3 || counts.Expired != 1 {
		t.Fatalf("expected 3 total and 1 expired, got %+v", counts)
	}
}
