package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/medreza/honcho-benefit-service/pkg/catalog"
	"github.com/medreza/honcho-benefit-service/pkg/ledger"
	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/sirupsen/logrus"
)

var errNoAssociation = errors.New("member has no association")

type MemberStore interface {
	GetMember(ctx context.Context, id string) (*models.Member, error)
}

// Aggregator derives a member's savings and usage summary. Statistics are advisory:
// any read failure yields zeroed figures instead of an error. Validity dates are
// judged by the catalog's clock.
type Aggregator struct {
	members MemberStore
	catalog *catalog.Catalog
	ledger  *ledger.Ledger
}

func NewAggregator(members MemberStore, c *catalog.Catalog, l *ledger.Ledger) *Aggregator {
	return &Aggregator{members: members, catalog: c, ledger: l}
}

func Zero() models.Stats {
	return models.Stats{ByCategory: make(map[string]int)}
}

func (a *Aggregator) Get(ctx context.Context, memberID string) models.Stats {
	s, err := a.compute(ctx, memberID)
	if err != nil {
		logrus.WithField("member_id", memberID).WithError(err).Warn("Stats: Failed to compute member stats")
		return Zero()
	}
	return s
}

func (a *Aggregator) compute(ctx context.Context, memberID string) (models.Stats, error) {
	s := Zero()

	member, err := a.members.GetMember(ctx, memberID)
	if err != nil {
		return s, fmt.Errorf("load member: %w", err)
	}
	if member.AssociationID == "" {
		return s, errNoAssociation
	}

	counts, err := a.catalog.CountForAssociation(ctx, member.AssociationID)
	if err != nil {
		return s, err
	}
	available, err := a.catalog.ListAvailable(ctx, memberID, member.AssociationID)
	if err != nil {
		return s, err
	}
	summary, err := a.ledger.Summarize(ctx, memberID)
	if err != nil {
		return s, err
	}

	s.Total = counts.Total
	s.Expired = counts.Expired
	s.Available = len(available)
	s.Used = summary.Count
	s.SavingsTotal = summary.SavingsTotal
	for category, n := range summary.ByCategory {
		if category == "" {
			category = "other"
		}
		s.ByCategory[category] += n
	}
	return s, nil
}
