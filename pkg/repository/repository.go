package repository

import (
	"errors"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrIndexUnavailable  = errors.New("query index unavailable")
	ErrUsageLimitReached = errors.New("usage limit reached")
)

const (
	CollectionMembers            = "members"
	CollectionMerchants          = "merchants"
	CollectionBenefits           = "benefits"
	CollectionRedemptionRecords  = "redemption_records"
	CollectionValidationAttempts = "validation_attempts"
	CollectionUsageCounters      = "usage_counters"
)

// ActiveBenefitsIndex is the compound index (status, associations, created_at desc)
// the catalog's primary query relies on.
const ActiveBenefitsIndex = "benefits_status_associations_created_at"
