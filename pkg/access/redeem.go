package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
	"github.com/sirupsen/logrus"
)

type RedeemRequest struct {
	BenefitID     string
	MemberID      string
	MerchantID    string
	AssociationID string
	// PurchaseAmount is the ticket total in cents, zero when unknown.
	PurchaseAmount int64
}

type BenefitRedeemedEvent struct {
	RedemptionID   string    `json:"redemption_id"`
	MemberID       string    `json:"member_id"`
	MerchantID     string    `json:"merchant_id"`
	BenefitID      string    `json:"benefit_id"`
	AssociationID  string    `json:"association_id"`
	DiscountAmount int64     `json:"discount_amount"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Redeem consumes a benefit. It re-runs the validation checks, then appends the ledger
// entry under the per-member limit, bumps the benefit usage counter and clears the
// association's cached listings. Ineligible requests fail with *DenialError.
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (*models.RedemptionRecord, error) {
	if strings.TrimSpace(req.BenefitID) == "" {
		return nil, fmt.Errorf("%w: benefit id is required", ErrInvalidRequest)
	}

	log := logrus.WithFields(logrus.Fields{
		"member_id":      req.MemberID,
		"merchant_id":    req.MerchantID,
		"benefit_id":     req.BenefitID,
		"association_id": req.AssociationID,
	})

	ev, err := s.evaluate(ctx, req.MemberID, req.MerchantID, req.BenefitID)
	if err != nil {
		return nil, err
	}
	if ev.outcome != models.OutcomeGranted {
		return nil, &DenialError{Result: ev.outcome, Reason: ev.reason}
	}
	if req.AssociationID != ev.member.AssociationID {
		return nil, &DenialError{Result: models.OutcomeDenied, Reason: ReasonAssociationMismatch}
	}

	benefit := ev.benefit
	rec, err := s.ledger.Record(ctx, models.RedemptionRecord{
		MemberID:       req.MemberID,
		MerchantID:     req.MerchantID,
		BenefitID:      benefit.ID,
		AssociationID:  req.AssociationID,
		BenefitTitle:   benefit.Title,
		Category:       benefit.Category,
		DiscountAmount: benefit.Discount.Apply(req.PurchaseAmount),
		RedeemedAt:     s.now().UTC(),
	}, benefit.PerMemberLimit)
	if err != nil {
		if errors.Is(err, repository.ErrUsageLimitReached) {
			return nil, &DenialError{Result: models.OutcomeDenied, Reason: ReasonUsageLimitReached}
		}
		log.WithError(err).Error("Redeem: Failed to record redemption")
		return nil, operationFailed("record redemption", err)
	}

	// The ledger entry is authoritative; the counter is a display aggregate.
	if err := s.catalog.IncrementUsage(ctx, benefit.ID); err != nil {
		log.WithError(err).Error("Redeem: Failed to increment benefit usage counter")
	}
	if err := s.catalog.InvalidateAssociation(ctx, req.AssociationID); err != nil {
		log.WithError(err).Error("Redeem: Failed to invalidate benefit cache")
	}

	s.publish(ctx, RoutingKeyBenefitRedeemed, BenefitRedeemedEvent{
		RedemptionID:   rec.ID,
		MemberID:       rec.MemberID,
		MerchantID:     rec.MerchantID,
		BenefitID:      rec.BenefitID,
		AssociationID:  rec.AssociationID,
		DiscountAmount: rec.DiscountAmount,
		OccurredAt:     rec.RedeemedAt,
	})

	log.WithField("redemption_id", rec.ID).Info("Redeem: Benefit redeemed")
	return rec, nil
}

// ListAvailable returns the benefits the member can currently use in the association.
func (s *Service) ListAvailable(ctx context.Context, memberID, associationID string) ([]models.Benefit, error) {
	return s.catalog.ListAvailable(ctx, memberID, associationID)
}

// History returns the member's most recent redemptions.
func (s *Service) History(ctx context.Context, memberID string, limit int) ([]models.RedemptionRecord, error) {
	return s.ledger.History(ctx, memberID, limit)
}

func (s *Service) GetBenefit(ctx context.Context, benefitID string) (*models.Benefit, error) {
	return s.catalog.GetByID(ctx, benefitID)
}
