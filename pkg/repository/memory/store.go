// Package memory keeps every collection in process. It backs STORE_DRIVER=memory for
// local runs and doubles as the fake store in tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
)

type Store struct {
	mu           sync.RWMutex
	members      map[string]models.Member
	merchants    map[string]models.Merchant
	benefits     map[string]models.Benefit
	benefitOrder []string
	redemptions  []models.RedemptionRecord
	attempts     []models.ValidationAttempt

	indexMissing bool
	failure      error
}

func New() *Store {
	return &Store{
		members:   make(map[string]models.Member),
		merchants: make(map[string]models.Merchant),
		benefits:  make(map[string]models.Benefit),
	}
}

func (s *Store) PutMember(m models.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *Store) PutMerchant(m models.Merchant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merchants[m.ID] = m
}

func (s *Store) PutBenefit(b models.Benefit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.benefits[b.ID]; !ok {
		s.benefitOrder = append(s.benefitOrder, b.ID)
	}
	s.benefits[b.ID] = b
}

// DropIndex makes indexed benefit queries fail the way a provider does when the
// compound index has not been built.
func (s *Store) DropIndex() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexMissing = true
}

// Fail makes every subsequent read and write return err. Pass nil to recover.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

func (s *Store) ValidationAttempts() []models.ValidationAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.attempts)
}

func (s *Store) GetMember(ctx context.Context, id string) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}
	m, ok := s.members[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (s *Store) GetMerchant(ctx context.Context, id string) (*models.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}
	m, ok := s.merchants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m.Associations = slices.Clone(m.Associations)
	return &m, nil
}

func (s *Store) GetBenefit(ctx context.Context, id string) (*models.Benefit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}
	b, ok := s.benefits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	b.Associations = slices.Clone(b.Associations)
	return &b, nil
}

func (s *Store) FindActiveBenefits(ctx context.Context, associationID string, limit int) ([]models.Benefit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}
	if s.indexMissing {
		return nil, repository.ErrIndexUnavailable
	}

	out := s.filterLocked(func(b *models.Benefit) bool {
		return b.Status == models.BenefitStatusActive && b.EligibleFor(associationID)
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return truncate(out, limit), nil
}

func (s *Store) CountBenefitsByAssociation(ctx context.Context, associationID string, now time.Time) (models.BenefitCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts models.BenefitCounts
	if s.failure != nil {
		return counts, s.failure
	}

	for _, b := range s.benefits {
		if !b.EligibleFor(associationID) {
			continue
		}
		counts.Total++
		if b.ExpiredAt(now) {
			counts.Expired++
		}
	}
	return counts, nil
}

func (s *Store) ScanBenefits(ctx context.Context, limit int) ([]models.Benefit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}
	out := s.filterLocked(func(*models.Benefit) bool { return true })
	return truncate(out, limit), nil
}

func (s *Store) IncrementBenefitUsage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	b, ok := s.benefits[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.UsageCount++
	s.benefits[id] = b
	return nil
}

func (s *Store) AppendRedemption(ctx context.Context, rec *models.RedemptionRecord, perMemberLimit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	if perMemberLimit > 0 && s.countLocked(rec.BenefitID, rec.MemberID) >= perMemberLimit {
		return repository.ErrUsageLimitReached
	}
	s.redemptions = append(s.redemptions, *rec)
	return nil
}

func (s *Store) CountRedemptions(ctx context.Context, benefitID, memberID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return 0, s.failure
	}
	return s.countLocked(benefitID, memberID), nil
}

func (s *Store) SummarizeRedemptions(ctx context.Context, memberID string) (models.RedemptionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary := models.RedemptionSummary{ByCategory: make(map[string]int)}
	if s.failure != nil {
		return summary, s.failure
	}

	for _, r := range s.redemptions {
		if r.MemberID != memberID || r.Outcome != models.RedemptionSucceeded {
			continue
		}
		summary.Count++
		summary.SavingsTotal += r.DiscountAmount
		summary.ByCategory[r.Category]++
	}
	return summary, nil
}

func (s *Store) ListRedemptions(ctx context.Context, memberID string, limit int) ([]models.RedemptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}

	var out []models.RedemptionRecord
	for i := len(s.redemptions) - 1; i >= 0; i-- {
		if s.redemptions[i].MemberID == memberID {
			out = append(out, s.redemptions[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RedeemedAt.After(out[j].RedeemedAt)
	})
	return truncate(out, limit), nil
}

func (s *Store) AppendValidationAttempt(ctx context.Context, attempt *models.ValidationAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	s.attempts = append(s.attempts, *attempt)
	return nil
}

func (s *Store) filterLocked(keep func(*models.Benefit) bool) []models.Benefit {
	var out []models.Benefit
	for _, id := range s.benefitOrder {
		b := s.benefits[id]
		if keep(&b) {
			b.Associations = slices.Clone(b.Associations)
			out = append(out, b)
		}
	}
	return out
}

func (s *Store) countLocked(benefitID, memberID string) int {
	n := 0
	for _, r := range s.redemptions {
		if r.BenefitID == benefitID && r.MemberID == memberID && r.Outcome == models.RedemptionSucceeded {
			n++
		}
	}
	return n
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
