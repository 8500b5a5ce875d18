package access

import (
	"context"
	"errors"

	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
)

type evaluation struct {
	member   *models.Member
	merchant *models.Merchant
	benefit  *models.Benefit
	outcome  models.Outcome
	reason   string
}

func (ev *evaluation) deny(outcome models.Outcome, reason string) *evaluation {
	ev.outcome = outcome
	ev.reason = reason
	return ev
}

// evaluate runs the eligibility checks in order and stops at the first one that
// fails. Missing member or merchant records are errors, not denials.
func (s *Service) evaluate(ctx context.Context, memberID, merchantID, benefitID string) (*evaluation, error) {
	member, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, operationFailed("load member", err)
	}

	ev := &evaluation{member: member}
	if member.Status != models.MemberStatusActive {
		return ev.deny(models.OutcomeDenied, ReasonMemberInactive), nil
	}

	merchant, err := s.merchants.GetMerchant(ctx, merchantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMerchantNotFound
		}
		return nil, operationFailed("load merchant", err)
	}
	ev.merchant = merchant

	if merchant.Status != models.MerchantStatusActive {
		return ev.deny(models.OutcomeDenied, ReasonMerchantInactive), nil
	}
	if member.AssociationID == "" {
		return ev.deny(models.OutcomeDenied, ReasonNoAssociation), nil
	}

	if benefitID != "" {
		benefit, err := s.catalog.GetByID(ctx, benefitID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ev.deny(models.OutcomeDenied, ReasonBenefitNotFound), nil
			}
			return nil, operationFailed("load benefit", err)
		}
		ev.benefit = benefit

		if benefit.Status != models.BenefitStatusActive {
			return ev.deny(models.OutcomeExpired, ReasonBenefitUnavailable), nil
		}
		if !benefit.EligibleFor(member.AssociationID) {
			return ev.deny(models.OutcomeDenied, ReasonBenefitNotEligible), nil
		}
		if benefit.ExpiredAt(s.now()) {
			return ev.deny(models.OutcomeExpired, ReasonBenefitExpired), nil
		}
		if benefit.HasLimit() {
			used, err := s.ledger.CountSuccessful(ctx, benefit.ID, member.ID)
			if err != nil {
				return nil, operationFailed("count redemptions", err)
			}
			if used >= benefit.PerMemberLimit {
				return ev.deny(models.OutcomeDenied, ReasonUsageLimitReached), nil
			}
		}
	}

	if !merchant.Accepts(member.AssociationID) {
		return ev.deny(models.OutcomeDenied, ReasonMerchantNotLinked), nil
	}

	ev.outcome = models.OutcomeGranted
	ev.reason = ReasonGranted
	return ev, nil
}
