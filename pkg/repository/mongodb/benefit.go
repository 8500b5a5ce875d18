package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) GetBenefit(ctx context.Context, id string) (*models.Benefit, error) {
	var benefit models.Benefit
	if err := s.benefits.FindOne(ctx, bson.M{"_id": id}).Decode(&benefit); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get benefit: %w", err)
	}
	return &benefit, nil
}

// FindActiveBenefits pins the query to the compound index so a missing index is
// reported instead of silently turning into a collection scan.
func (s *Store) FindActiveBenefits(ctx context.Context, associationID string, limit int) ([]models.Benefit, error) {
	opts := options.Find().
		SetHint(repository.ActiveBenefitsIndex).
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	filter := bson.M{
		"status":       models.BenefitStatusActive,
		"associations": associationID,
	}

	benefits, err := s.findBenefits(ctx, filter, opts)
	if err != nil {
		if isMissingIndex(err) {
			return nil, fmt.Errorf("%w: %v", repository.ErrIndexUnavailable, err)
		}
		return nil, err
	}
	return benefits, nil
}

func (s *Store) CountBenefitsByAssociation(ctx context.Context, associationID string, now time.Time) (models.BenefitCounts, error) {
	var counts models.BenefitCounts

	total, err := s.benefits.CountDocuments(ctx, bson.M{"associations": associationID})
	if err != nil {
		return counts, fmt.Errorf("failed to count benefits: %w", err)
	}
	expired, err := s.benefits.CountDocuments(ctx, bson.M{
		"associations": associationID,
		"valid_until":  bson.M{"$lte": now},
	})
	if err != nil {
		return counts, fmt.Errorf("failed to count expired benefits: %w", err)
	}

	counts.Total = int(total)
	counts.Expired = int(expired)
	return counts, nil
}

func (s *Store) ScanBenefits(ctx context.Context, limit int) ([]models.Benefit, error) {
	return s.findBenefits(ctx, bson.M{}, options.Find().SetLimit(int64(limit)))
}

func (s *Store) IncrementBenefitUsage(ctx context.Context, id string) error {
	res, err := s.benefits.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"usage_count": 1}},
	)
	if err != nil {
		return fmt.Errorf("failed to increment benefit usage: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) findBenefits(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Benefit, error) {
	cur, err := s.benefits.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query benefits: %w", err)
	}

	var benefits []models.Benefit
	if err := cur.All(ctx, &benefits); err != nil {
		return nil, fmt.Errorf("failed to decode benefits: %w", err)
	}
	return benefits, nil
}
