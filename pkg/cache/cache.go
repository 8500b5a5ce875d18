// Package cache holds benefit listings per (member, association) for a bounded time.
package cache

import (
	"context"
	"time"

	"github.com/medreza/honcho-benefit-service/pkg/models"
)

const DefaultTTL = 5 * time.Minute

type Key struct {
	MemberID      string
	AssociationID string
}

type Cache interface {
	Get(ctx context.Context, key Key) ([]models.Benefit, bool, error)
	Set(ctx context.Context, key Key, benefits []models.Benefit) error
	// InvalidateAssociation drops the entries of every member of the association.
	InvalidateAssociation(ctx context.Context, associationID string) error
}
