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

const releaseTimeout = 5 * time.Second

type usageCounter struct {
	ID        string `bson:"_id"`
	BenefitID string `bson:"benefit_id"`
	MemberID  string `bson:"member_id"`
	Count     int    `bson:"count"`
}

func counterID(benefitID, memberID string) string {
	return benefitID + ":" + memberID
}

// AppendRedemption reserves a slot on the (benefit, member) usage counter before the
// ledger insert. The conditional $inc is the check-and-increment: when the counter is
// already at the limit no document matches and the redemption is refused.
func (s *Store) AppendRedemption(ctx context.Context, rec *models.RedemptionRecord, perMemberLimit int) error {
	reserved := false
	if rec.BenefitID != "" {
		if err := s.ensureUsageCounter(ctx, rec.BenefitID, rec.MemberID); err != nil {
			return err
		}

		filter := bson.M{"_id": counterID(rec.BenefitID, rec.MemberID)}
		if perMemberLimit > 0 {
			filter["count"] = bson.M{"$lt": perMemberLimit}
		}
		res, err := s.counters.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"count": 1}})
		if err != nil {
			return fmt.Errorf("failed to reserve usage: %w", err)
		}
		if res.MatchedCount == 0 {
			return repository.ErrUsageLimitReached
		}
		reserved = true
	}

	if _, err := s.redemptions.InsertOne(ctx, rec); err != nil {
		if reserved {
			s.releaseUsage(rec.BenefitID, rec.MemberID)
		}
		return fmt.Errorf("failed to insert redemption record: %w", err)
	}
	return nil
}

// ensureUsageCounter seeds the counter from the ledger the first time a pair is seen,
// so records written before the counter existed still count.
func (s *Store) ensureUsageCounter(ctx context.Context, benefitID, memberID string) error {
	id := counterID(benefitID, memberID)
	err := s.counters.FindOne(ctx, bson.M{"_id": id}).Err()
	if err == nil {
		return nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("failed to load usage counter: %w", err)
	}

	count, err := s.CountRedemptions(ctx, benefitID, memberID)
	if err != nil {
		return err
	}

	_, err = s.counters.InsertOne(ctx, usageCounter{
		ID:        id,
		BenefitID: benefitID,
		MemberID:  memberID,
		Count:     count,
	})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to seed usage counter: %w", err)
	}
	return nil
}

func (s *Store) releaseUsage(benefitID, memberID string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	_, _ = s.counters.UpdateOne(ctx,
		bson.M{"_id": counterID(benefitID, memberID), "count": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"count": -1}},
	)
}

func (s *Store) CountRedemptions(ctx context.Context, benefitID, memberID string) (int, error) {
	n, err := s.redemptions.CountDocuments(ctx, bson.M{
		"benefit_id": benefitID,
		"member_id":  memberID,
		"outcome":    models.RedemptionSucceeded,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return int(n), nil
}

type categoryTotal struct {
	Category string `bson:"_id"`
	Count    int    `bson:"count"`
	Savings  int64  `bson:"savings"`
}

func (s *Store) SummarizeRedemptions(ctx context.Context, memberID string) (models.RedemptionSummary, error) {
	summary := models.RedemptionSummary{ByCategory: make(map[string]int)}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"member_id": memberID,
			"outcome":   models.RedemptionSucceeded,
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":     bson.M{"$ifNull": bson.A{"$category", ""}},
			"count":   bson.M{"$sum": 1},
			"savings": bson.M{"$sum": "$discount_amount"},
		}}},
	}

	cur, err := s.redemptions.Aggregate(ctx, pipeline)
	if err != nil {
		return summary, fmt.Errorf("failed to summarize redemptions: %w", err)
	}

	var totals []categoryTotal
	if err := cur.All(ctx, &totals); err != nil {
		return summary, fmt.Errorf("failed to decode redemption summary: %w", err)
	}

	for _, t := range totals {
		summary.Count += t.Count
		summary.SavingsTotal += t.Savings
		summary.ByCategory[t.Category] += t.Count
	}
	return summary, nil
}

func (s *Store) ListRedemptions(ctx context.Context, memberID string, limit int) ([]models.RedemptionRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "redeemed_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.redemptions.Find(ctx, bson.M{"member_id": memberID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get redemptions: %w", err)
	}

	var records []models.RedemptionRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode redemptions: %w", err)
	}
	return records, nil
}

func (s *Store) AppendValidationAttempt(ctx context.Context, attempt *models.ValidationAttempt) error {
	if _, err := s.attempts.InsertOne(ctx, attempt); err != nil {
		return fmt.Errorf("failed to insert validation attempt: %w", err)
	}
	return nil
}
