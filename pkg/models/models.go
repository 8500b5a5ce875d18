package models

import (
	"fmt"
	"slices"
	"time"
)

type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "active"
	MemberStatusInactive MemberStatus = "inactive"
)

type MerchantStatus string

const (
	MerchantStatusActive   MerchantStatus = "active"
	MerchantStatusInactive MerchantStatus = "inactive"
)

type BenefitStatus string

const (
	BenefitStatusActive   BenefitStatus = "active"
	BenefitStatusInactive BenefitStatus = "inactive"
)

type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
	DiscountFreeItem    DiscountType = "free_item"
)

// Outcome is the decision returned to callers of the access pipeline.
type Outcome string

const (
	OutcomeGranted Outcome = "habilitado"
	OutcomeDenied  Outcome = "no_habilitado"
	OutcomeExpired Outcome = "vencido"
)

// AuditTag maps a decision outcome to the tag stored on its audit record.
func (o Outcome) AuditTag() string {
	switch o {
	case OutcomeGranted:
		return "granted"
	case OutcomeExpired:
		return "expired"
	default:
		return "denied"
	}
}

const RedemptionSucceeded = "success"

type Member struct {
	ID            string       `json:"id" bson:"_id"`
	Name          string       `json:"name" bson:"name"`
	Status        MemberStatus `json:"status" bson:"status"`
	AssociationID string       `json:"association_id,omitempty" bson:"association_id,omitempty"`
}

type Merchant struct {
	ID           string         `json:"id" bson:"_id"`
	Name         string         `json:"name" bson:"name"`
	Status       MerchantStatus `json:"status" bson:"status"`
	Associations []string       `json:"associations" bson:"associations"`
}

func (m *Merchant) Accepts(associationID string) bool {
	return slices.Contains(m.Associations, associationID)
}

type Discount struct {
	Type        DiscountType `json:"type" bson:"type"`
	Percent     float64      `json:"percent,omitempty" bson:"percent,omitempty"`
	AmountCents int64        `json:"amount_cents,omitempty" bson:"amount_cents,omitempty"`
	Item        string       `json:"item,omitempty" bson:"item,omitempty"`
}

// Apply returns the discount in cents for a purchase. purchaseCents may be zero when
// the merchant did not report the ticket total.
func (d Discount) Apply(purchaseCents int64) int64 {
	switch d.Type {
	case DiscountPercentage:
		if purchaseCents <= 0 {
			return 0
		}
		return int64(float64(purchaseCents) * d.Percent / 100)
	case DiscountFixedAmount:
		if purchaseCents > 0 && d.AmountCents > purchaseCents {
			return purchaseCents
		}
		return d.AmountCents
	case DiscountFreeItem:
		return d.AmountCents
	}
	return 0
}

func (d Discount) Label() string {
	switch d.Type {
	case DiscountPercentage:
		return fmt.Sprintf("%g%% de descuento", d.Percent)
	case DiscountFixedAmount:
		return fmt.Sprintf("$%d.%02d de descuento", d.AmountCents/100, d.AmountCents%100)
	case DiscountFreeItem:
		if d.Item == "" {
			return "Producto gratis"
		}
		return d.Item + " gratis"
	}
	return ""
}

type Benefit struct {
	ID             string        `json:"id" bson:"_id"`
	MerchantID     string        `json:"merchant_id" bson:"merchant_id"`
	Title          string        `json:"title" bson:"title"`
	Description    string        `json:"description,omitempty" bson:"description,omitempty"`
	Category       string        `json:"category,omitempty" bson:"category,omitempty"`
	Discount       Discount      `json:"discount" bson:"discount"`
	Status         BenefitStatus `json:"status" bson:"status"`
	ValidUntil     *time.Time    `json:"valid_until,omitempty" bson:"valid_until,omitempty"`
	Associations   []string      `json:"associations" bson:"associations"`
	PerMemberLimit int           `json:"per_member_limit,omitempty" bson:"per_member_limit,omitempty"`
	UsageCount     int           `json:"usage_count" bson:"usage_count"`
	CreatedAt      time.Time     `json:"created_at" bson:"created_at"`
}

func (b *Benefit) EligibleFor(associationID string) bool {
	return associationID != "" && slices.Contains(b.Associations, associationID)
}

// ExpiredAt reports whether the validity window closed before now. Benefits
// without an end date never expire.
func (b *Benefit) ExpiredAt(now time.Time) bool {
	return b.ValidUntil != nil && !b.ValidUntil.After(now)
}

func (b *Benefit) HasLimit() bool {
	return b.PerMemberLimit > 0
}

type RedemptionRecord struct {
	ID             string    `json:"id" bson:"_id"`
	MemberID       string    `json:"member_id" bson:"member_id"`
	MerchantID     string    `json:"merchant_id" bson:"merchant_id"`
	BenefitID      string    `json:"benefit_id,omitempty" bson:"benefit_id,omitempty"`
	AssociationID  string    `json:"association_id" bson:"association_id"`
	BenefitTitle   string    `json:"benefit_title,omitempty" bson:"benefit_title,omitempty"`
	Category       string    `json:"category,omitempty" bson:"category,omitempty"`
	DiscountAmount int64     `json:"discount_amount" bson:"discount_amount"`
	Outcome        string    `json:"outcome" bson:"outcome"`
	RedeemedAt     time.Time `json:"redeemed_at" bson:"redeemed_at"`
}

// RedemptionSummary totals a member's successful redemptions. ByCategory is keyed by
// the raw record category, so uncategorised records land under "".
type RedemptionSummary struct {
	Count        int
	SavingsTotal int64
	ByCategory   map[string]int
}

// BenefitCounts covers every benefit of an association regardless of status.
type BenefitCounts struct {
	Total   int
	Expired int
}

type GeoPoint struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// ClientMetadata carries what the scanning client reported about itself. Extra holds
// provider specific fields that have no dedicated column.
type ClientMetadata struct {
	DeviceClass string            `json:"device_class,omitempty" bson:"device_class,omitempty"`
	Location    *GeoPoint         `json:"location,omitempty" bson:"location,omitempty"`
	Extra       map[string]string `json:"extra,omitempty" bson:"extra,omitempty"`
}

type ValidationAttempt struct {
	ID          string         `json:"id" bson:"_id"`
	MemberID    string         `json:"member_id" bson:"member_id"`
	MerchantID  string         `json:"merchant_id" bson:"merchant_id"`
	BenefitID   string         `json:"benefit_id,omitempty" bson:"benefit_id,omitempty"`
	Outcome     string         `json:"outcome" bson:"outcome"`
	Reason      string         `json:"reason" bson:"reason"`
	Client      ClientMetadata `json:"client" bson:"client"`
	AttemptedAt time.Time      `json:"attempted_at" bson:"attempted_at"`
}

type Stats struct {
	Total        int            `json:"total"`
	Available    int            `json:"available"`
	Used         int            `json:"used"`
	Expired      int            `json:"expired"`
	SavingsTotal int64          `json:"savings_total"`
	ByCategory   map[string]int `json:"by_category"`
}

type ValidateAccessRequest struct {
	MemberID   string            `json:"member_id" binding:"required"`
	MerchantID string            `json:"merchant_id" binding:"required"`
	BenefitID  string            `json:"benefit_id"`
	Location   *GeoPoint         `json:"location"`
	Device     string            `json:"device_class"`
	Extra      map[string]string `json:"extra"`
}

type ScanRequest struct {
	MemberID string            `json:"member_id" binding:"required"`
	Token    string            `json:"token" binding:"required"`
	Location *GeoPoint         `json:"location"`
	Device   string            `json:"device_class"`
	Extra    map[string]string `json:"extra"`
}

type RedeemBenefitRequest struct {
	MemberID       string `json:"member_id" binding:"required"`
	MerchantID     string `json:"merchant_id" binding:"required"`
	AssociationID  string `json:"association_id" binding:"required"`
	PurchaseAmount int64  `json:"purchase_amount" binding:"min=0"`
}

type IssueTokenRequest struct {
	BenefitID string `json:"benefit_id"`
}
