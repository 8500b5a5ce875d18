package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// noQueryExecutionPlans is raised when the server runs with notablescan and no index
// can serve the filter.
const noQueryExecutionPlans = 291

type Store struct {
	members     *mongo.Collection
	merchants   *mongo.Collection
	benefits    *mongo.Collection
	redemptions *mongo.Collection
	counters    *mongo.Collection
	attempts    *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		members:     db.Collection(repository.CollectionMembers),
		merchants:   db.Collection(repository.CollectionMerchants),
		benefits:    db.Collection(repository.CollectionBenefits),
		redemptions: db.Collection(repository.CollectionRedemptionRecords),
		counters:    db.Collection(repository.CollectionUsageCounters),
		attempts:    db.Collection(repository.CollectionValidationAttempts),
	}
}

func (s *Store) GetMember(ctx context.Context, id string) (*models.Member, error) {
	var member models.Member
	if err := s.members.FindOne(ctx, bson.M{"_id": id}).Decode(&member); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &member, nil
}

func (s *Store) GetMerchant(ctx context.Context, id string) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := s.merchants.FindOne(ctx, bson.M{"_id": id}).Decode(&merchant); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}
	return &merchant, nil
}

func isMissingIndex(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorMessage("hint provided does not correspond to an existing index") ||
		se.HasErrorCode(noQueryExecutionPlans)
}
