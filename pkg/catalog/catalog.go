package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/medreza/honcho-benefit-service/pkg/cache"
	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
	"github.com/sirupsen/logrus"
)

const (
	// AvailableLimit caps the indexed listing.
	AvailableLimit = 100
	// FallbackScanLimit caps the unindexed scan used when the index is unavailable.
	FallbackScanLimit = 50
)

type Store interface {
	GetBenefit(ctx context.Context, id string) (*models.Benefit, error)
	FindActiveBenefits(ctx context.Context, associationID string, limit int) ([]models.Benefit, error)
	CountBenefitsByAssociation(ctx context.Context, associationID string, now time.Time) (models.BenefitCounts, error)
	ScanBenefits(ctx context.Context, limit int) ([]models.Benefit, error)
	IncrementBenefitUsage(ctx context.Context, id string) error
}

type Catalog struct {
	store Store
	cache cache.Cache
	now   func() time.Time
}

func New(store Store, c cache.Cache) *Catalog {
	return NewWithClock(store, c, time.Now)
}

func NewWithClock(store Store, c cache.Cache, now func() time.Time) *Catalog {
	return &Catalog{store: store, cache: c, now: now}
}

// ListAvailable returns the active, unexpired benefits of an association, newest first.
// Cache errors are logged and treated as misses.
func (c *Catalog) ListAvailable(ctx context.Context, memberID, associationID string) ([]models.Benefit, error) {
	key := cache.Key{MemberID: memberID, AssociationID: associationID}
	log := logrus.WithFields(logrus.Fields{
		"member_id":      memberID,
		"association_id": associationID,
	})

	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			log.WithError(err).Warn("Catalog: Cache read failed")
		} else if ok {
			return c.dropExpired(cached), nil
		}
	}

	benefits, err := c.store.FindActiveBenefits(ctx, associationID, AvailableLimit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("failed to list benefits: %w", err)
		}
		if errors.Is(err, repository.ErrIndexUnavailable) {
			log.WithError(err).Warn("Catalog: Benefit index unavailable, falling back to scan")
		} else {
			log.WithError(err).Warn("Catalog: Indexed benefit query failed, falling back to scan")
		}

		benefits, err = c.scanAvailable(ctx, associationID)
		if err != nil {
			return nil, err
		}
	}

	benefits = c.dropExpired(benefits)

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, benefits); err != nil {
			log.WithError(err).Warn("Catalog: Cache write failed")
		}
	}
	return benefits, nil
}

func (c *Catalog) scanAvailable(ctx context.Context, associationID string) ([]models.Benefit, error) {
	all, err := c.store.ScanBenefits(ctx, FallbackScanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to scan benefits: %w", err)
	}

	out := make([]models.Benefit, 0, len(all))
	for _, b := range all {
		if b.Status == models.BenefitStatusActive && b.EligibleFor(associationID) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (c *Catalog) dropExpired(benefits []models.Benefit) []models.Benefit {
	now := c.now()
	out := make([]models.Benefit, 0, len(benefits))
	for _, b := range benefits {
		if !b.ExpiredAt(now) {
			out = append(out, b)
		}
	}
	return out
}

// CountForAssociation counts every benefit of the association regardless of status,
// and how many of them are past their validity date. Not cached.
func (c *Catalog) CountForAssociation(ctx context.Context, associationID string) (models.BenefitCounts, error) {
	counts, err := c.store.CountBenefitsByAssociation(ctx, associationID, c.now())
	if err != nil {
		return counts, fmt.Errorf("failed to count association benefits: %w", err)
	}
	return counts, nil
}

// GetByID reads the benefit straight from the store.
func (c *Catalog) GetByID(ctx context.Context, benefitID string) (*models.Benefit, error) {
	return c.store.GetBenefit(ctx, benefitID)
}

func (c *Catalog) IncrementUsage(ctx context.Context, benefitID string) error {
	return c.store.IncrementBenefitUsage(ctx, benefitID)
}

func (c *Catalog) InvalidateAssociation(ctx context.Context, associationID string) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.InvalidateAssociation(ctx, associationID)
}
