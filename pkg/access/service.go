package access

import (
	"context"
	"errors"
	"time"

	"github.com/medreza/honcho-benefit-service/pkg/catalog"
	"github.com/medreza/honcho-benefit-service/pkg/ledger"
	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
	"github.com/medreza/honcho-benefit-service/pkg/token"
	"github.com/sirupsen/logrus"
)

const (
	DefaultExchange = "benefits.events"

	RoutingKeyAccessValidated = "access.validated"
	RoutingKeyBenefitRedeemed = "benefit.redeemed"
)

type MemberStore interface {
	GetMember(ctx context.Context, id string) (*models.Member, error)
}

type MerchantStore interface {
	GetMerchant(ctx context.Context, id string) (*models.Merchant, error)
}

type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

type Deps struct {
	Members   MemberStore
	Merchants MerchantStore
	Catalog   *catalog.Catalog
	Ledger    *ledger.Ledger
	Audit     *ledger.AuditLog
	Codec     *token.Codec
	// Publisher is optional.
	Publisher Publisher
	Exchange  string
	Now       func() time.Time
}

type Service struct {
	members   MemberStore
	merchants MerchantStore
	catalog   *catalog.Catalog
	ledger    *ledger.Ledger
	audit     *ledger.AuditLog
	codec     *token.Codec
	publisher Publisher
	exchange  string
	now       func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		members:   d.Members,
		merchants: d.Merchants,
		catalog:   d.Catalog,
		ledger:    d.Ledger,
		audit:     d.Audit,
		codec:     d.Codec,
		publisher: d.Publisher,
		exchange:  d.Exchange,
		now:       d.Now,
	}
	if s.codec == nil {
		s.codec = token.NewCodec("")
	}
	if s.exchange == "" {
		s.exchange = DefaultExchange
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type ValidateRequest struct {
	MemberID   string
	MerchantID string
	BenefitID  string
	Client     models.ClientMetadata
}

type MemberSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	AssociationID string `json:"association_id,omitempty"`
}

type BenefitSummary struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Discount     string          `json:"discount"`
	Detail       models.Discount `json:"discount_detail"`
	MerchantName string          `json:"merchant_name"`
	ValidUntil   *time.Time      `json:"valid_until,omitempty"`
}

type Decision struct {
	Result       models.Outcome  `json:"result"`
	Reason       string          `json:"reason"`
	Benefit      *BenefitSummary `json:"benefit,omitempty"`
	Member       MemberSummary   `json:"member"`
	ValidationID string          `json:"validation_id"`
}

func (d *Decision) Granted() bool {
	return d.Result == models.OutcomeGranted
}

type AccessValidatedEvent struct {
	ValidationID string         `json:"validation_id"`
	MemberID     string         `json:"member_id"`
	MerchantID   string         `json:"merchant_id"`
	BenefitID    string         `json:"benefit_id,omitempty"`
	Result       models.Outcome `json:"result"`
	Reason       string         `json:"reason"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// ValidateAccess decides whether the member may use the merchant's benefits right now.
// Business denials come back as a Decision; only broken references and store
// failures are errors. Every decision is written to the audit log before returning.
func (s *Service) ValidateAccess(ctx context.Context, req ValidateRequest) (*Decision, error) {
	ev, err := s.evaluate(ctx, req.MemberID, req.MerchantID, req.BenefitID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.audit.Write(ctx, models.ValidationAttempt{
		MemberID:   req.MemberID,
		MerchantID: req.MerchantID,
		BenefitID:  req.BenefitID,
		Outcome:    ev.outcome.AuditTag(),
		Reason:     ev.reason,
		Client:     req.Client,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"member_id":   req.MemberID,
			"merchant_id": req.MerchantID,
			"benefit_id":  req.BenefitID,
			"result":      ev.outcome,
		}).WithError(err).Error("ValidateAccess: Failed to write audit record")
		return nil, operationFailed("write audit record", err)
	}

	decision := &Decision{
		Result: ev.outcome,
		Reason: ev.reason,
		Member: MemberSummary{
			ID:            ev.member.ID,
			Name:          ev.member.Name,
			AssociationID: ev.member.AssociationID,
		},
		ValidationID: attempt.ID,
	}
	if decision.Granted() && ev.benefit != nil {
		decision.Benefit = &BenefitSummary{
			ID:           ev.benefit.ID,
			Title:        ev.benefit.Title,
			Discount:     ev.benefit.Discount.Label(),
			Detail:       ev.benefit.Discount,
			MerchantName: ev.merchant.Name,
			ValidUntil:   ev.benefit.ValidUntil,
		}
	}

	s.publish(ctx, RoutingKeyAccessValidated, AccessValidatedEvent{
		ValidationID: attempt.ID,
		MemberID:     req.MemberID,
		MerchantID:   req.MerchantID,
		BenefitID:    req.BenefitID,
		Result:       ev.outcome,
		Reason:       ev.reason,
		OccurredAt:   attempt.AttemptedAt,
	})

	return decision, nil
}

// ValidateToken decodes a scanned merchant code and validates it for the member.
// Malformed and expired codes fail with the token package errors.
func (s *Service) ValidateToken(ctx context.Context, memberID, rawToken string, client models.ClientMetadata) (*Decision, error) {
	claims, err := s.codec.Decode(rawToken)
	if err != nil {
		return nil, err
	}
	return s.ValidateAccess(ctx, ValidateRequest{
		MemberID:   memberID,
		MerchantID: claims.MerchantID,
		BenefitID:  claims.BenefitID,
		Client:     client,
	})
}

// IssueToken builds the code a merchant displays for scanning.
func (s *Service) IssueToken(ctx context.Context, merchantID, benefitID string) (string, error) {
	if _, err := s.merchants.GetMerchant(ctx, merchantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrMerchantNotFound
		}
		return "", operationFailed("load merchant", err)
	}
	return s.codec.Encode(merchantID, benefitID)
}

func (s *Service) publish(ctx context.Context, routingKey string, event interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, s.exchange, routingKey, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"exchange":    s.exchange,
			"routing_key": routingKey,
		}).WithError(err).Warn("Access: Failed to publish event")
	}
}
