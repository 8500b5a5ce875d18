package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
	"github.com/medreza/honcho-benefit-service/pkg/repository/memory"
)

func TestRecordAssignsIdentityAndTimestamp(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(memory.New(), func() time.Time { return at })

	rec, err := l.Record(context.Background(), models.RedemptionRecord{
		MemberID:   "m1",
		MerchantID: "s1",
		BenefitID:  "b1",
	}, 0)
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected record id to be assigned")
	}
	if !rec.RedeemedAt.Equal(at) {
		t.Fatalf("expected redeemed at %v, got %v", at, rec.RedeemedAt)
	}
	if rec.Outcome != models.RedemptionSucceeded {
		t.Fatalf("expected success outcome, got %q", rec.Outcome)
	}
}

func TestRecordEnforcesPerMemberLimit(t *testing.T) {
	ctx := context.Background()
	l := New(memory.New())
	rec := models.RedemptionRecord{MemberID: "m1", MerchantID: "s1", BenefitID: "b1"}

	for i := 0; i < 2; i++ {
		if _, err := l.Record(ctx, rec, 2); err != nil {
			t.Fatalf("redemption %d returned error: %v", i+1, err)
		}
	}
	if _, err := l.Record(ctx, rec, 2); !errors.Is(err, repository.ErrUsageLimitReached) {
		t.Fatalf("expected ErrUsageLimitReached, got %v", err)
	}

	other := rec
	other.MemberID = "m2"
	if _, err := l.Record(ctx, other, 2); err != nil {
		t.Fatalf("expected limit to be per member, got %v", err)
	}

	n, err := l.CountSuccessful(ctx, "b1", "m1")
	if err != nil {
		t.Fatalf("CountSuccessful returned error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 redemptions for m1, got %d", n)
	}
}

func TestHistoryNewestFirstWithDefaultLimit(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(memory.New())

	for i := 0; i < DefaultHistoryLimit+5; i++ {
		_, err := l.Record(ctx, models.RedemptionRecord{
			MemberID:   "m1",
			MerchantID: "s1",
			RedeemedAt: base.Add(time.Duration(i) * time.Minute),
		}, 0)
		if err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	history, err := l.History(ctx, "m1", 0)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(history) != DefaultHistoryLimit {
		t.Fatalf("expected %d records, got %d", DefaultHistoryLimit, len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].RedeemedAt.After(history[i-1].RedeemedAt) {
			t.Fatalf("history not ordered newest first at index %d", i)
		}
	}

	empty, err := l.History(ctx, "nobody", 10)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil history, got %v", empty)
	}
}

func TestAuditLogWrite(t *testing.T) {
	store := memory.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	audit := NewAuditLogWithClock(store, func() time.Time { return at })

	written, err := audit.Write(context.Background(), models.ValidationAttempt{
		MemberID:   "m1",
		MerchantID: "s1",
		Outcome:    "denied",
		Reason:     "test",
	})
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if written.ID == "" || !written.AttemptedAt.Equal(at) {
		t.Fatalf("expected id and timestamp to be assigned, got %+v", written)
	}
	if got := store.ValidationAttempts(); len(got) != 1 || got[0].ID != written.ID {
		t.Fatalf("expected one stored attempt, got %+v", got)
	}
}

func TestAuditLogWriteFailure(t *testing.T) {
	store := memory.New()
	store.Fail(errors.New("disk full"))
	if _, err := NewAuditLog(store).Write(context.Background(), models.ValidationAttempt{}); err == nil {
		t.Fatal("expected audit write failure to surface")
	}
}

func TestSummarizeCoversMoreThanOneHistoryPage(t *testing.T) {
	ctx := context.Background()
	l := New(memory.New())
	n := MaxHistoryLimit + 50
	for i := 0; i < n; i++ {
		if _, err := l.Record(ctx, models.RedemptionRecord{MemberID: "m1", BenefitID: "b1", Category: "food", DiscountAmount: 100}, 0); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	summary, err := l.Summarize(ctx, "m1")
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if summary.Count != n || summary.SavingsTotal != int64(n)*100 || summary.ByCategory["food"] != n {
		t.Fatalf("expected %d redemptions worth %d, got %+v", n, n*100, summary)
	}

	empty, err := l.Summarize(ctx, "m2")
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if empty.Count != 0 || empty.ByCategory == nil {
		t.Fatalf("expected empty summary with category map, got %+v", empty)
	}
}
