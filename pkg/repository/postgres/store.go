package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
)

const benefitColumns = `id, merchant_id, title, description, category,
	discount_type, discount_percent, discount_amount_cents, discount_item,
	status, valid_until, associations, per_member_limit, usage_count, created_at`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetMember(ctx context.Context, id string) (*models.Member, error) {
	var member models.Member
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, status, COALESCE(association_id, '') FROM members WHERE id = $1`,
		id,
	).Scan(&member.ID, &member.Name, &member.Status, &member.AssociationID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &member, nil
}

func (s *Store) GetMerchant(ctx context.Context, id string) (*models.Merchant, error) {
	var merchant models.Merchant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, status, associations FROM merchants WHERE id = $1`,
		id,
	).Scan(&merchant.ID, &merchant.Name, &merchant.Status, &merchant.Associations)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}
	return &merchant, nil
}

func (s *Store) GetBenefit(ctx context.Context, id string) (*models.Benefit, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+benefitColumns+` FROM benefits WHERE id = $1`,
		id,
	)
	benefit, err := scanBenefit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get benefit: %w", err)
	}
	return benefit, nil
}

func (s *Store) FindActiveBenefits(ctx context.Context, associationID string, limit int) ([]models.Benefit, error) {
	return s.queryBenefits(ctx,
		`SELECT `+benefitColumns+` FROM benefits
		WHERE status = $1 AND $2 = ANY(associations)
		ORDER BY created_at DESC LIMIT $3`,
		models.BenefitStatusActive, associationID, limit,
	)
}

func (s *Store) CountBenefitsByAssociation(ctx context.Context, associationID string, now time.Time) (models.BenefitCounts, error) {
	var counts models.BenefitCounts
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE valid_until IS NOT NULL AND valid_until <= $2)
		FROM benefits WHERE $1 = ANY(associations)`,
		associationID, now,
	).Scan(&counts.Total, &counts.Expired)
	if err != nil {
		return counts, fmt.Errorf("failed to count benefits: %w", err)
	}
	return counts, nil
}

func (s *Store) ScanBenefits(ctx context.Context, limit int) ([]models.Benefit, error) {
	return s.queryBenefits(ctx, `SELECT `+benefitColumns+` FROM benefits LIMIT $1`, limit)
}

func (s *Store) IncrementBenefitUsage(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE benefits SET usage_count = usage_count + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to increment benefit usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) AppendRedemption(ctx context.Context, rec *models.RedemptionRecord, perMemberLimit int) error {
	// use transaction so the limit check and the insert are atomic
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if rec.BenefitID != "" {
		// lock the benefit row using 'FOR UPDATE' so concurrent redemptions of the
		// same benefit queue up behind the limit check
		var locked string
		err = tx.QueryRow(ctx,
			`SELECT id FROM benefits WHERE id = $1 FOR UPDATE`,
			rec.BenefitID,
		).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("failed to lock benefit: %w", err)
		}

		if perMemberLimit > 0 {
			var used int
			err = tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM redemption_records
				WHERE benefit_id = $1 AND member_id = $2 AND outcome = $3`,
				rec.BenefitID, rec.MemberID, models.RedemptionSucceeded,
			).Scan(&used)
			if err != nil {
				return fmt.Errorf("failed to count redemptions: %w", err)
			}
			if used >= perMemberLimit {
				return repository.ErrUsageLimitReached
			}
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO redemption_records
		(id, member_id, merchant_id, benefit_id, association_id, benefit_title, category, discount_amount, outcome, redeemed_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.MemberID, rec.MerchantID, rec.BenefitID, rec.AssociationID,
		rec.BenefitTitle, rec.Category, rec.DiscountAmount, rec.Outcome, rec.RedeemedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert redemption record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) CountRedemptions(ctx context.Context, benefitID, memberID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM redemption_records
		WHERE benefit_id = $1 AND member_id = $2 AND outcome = $3`,
		benefitID, memberID, models.RedemptionSucceeded,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return n, nil
}

func (s *Store) SummarizeRedemptions(ctx context.Context, memberID string) (models.RedemptionSummary, error) {
	summary := models.RedemptionSummary{ByCategory: make(map[string]int)}

	rows, err := s.pool.Query(ctx,
		`SELECT category, COUNT(*), COALESCE(SUM(discount_amount), 0)::BIGINT
		FROM redemption_records WHERE member_id = $1 AND outcome = $2
		GROUP BY category`,
		memberID, models.RedemptionSucceeded,
	)
	if err != nil {
		return summary, fmt.Errorf("failed to summarize redemptions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			category string
			count    int
			savings  int64
		)
		if err := rows.Scan(&category, &count, &savings); err != nil {
			return summary, fmt.Errorf("failed to scan redemption summary: %w", err)
		}
		summary.Count += count
		summary.SavingsTotal += savings
		summary.ByCategory[category] += count
	}

	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("error iterating redemption summary: %w", err)
	}
	return summary, nil
}

func (s *Store) ListRedemptions(ctx context.Context, memberID string, limit int) ([]models.RedemptionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, member_id, merchant_id, COALESCE(benefit_id, ''), association_id,
			benefit_title, category, discount_amount, outcome, redeemed_at
		FROM redemption_records WHERE member_id = $1
		ORDER BY redeemed_at DESC LIMIT $2`,
		memberID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get redemptions: %w", err)
	}
	defer rows.Close()

	var records []models.RedemptionRecord
	for rows.Next() {
		var r models.RedemptionRecord
		if err := rows.Scan(&r.ID, &r.MemberID, &r.MerchantID, &r.BenefitID, &r.AssociationID,
			&r.BenefitTitle, &r.Category, &r.DiscountAmount, &r.Outcome, &r.RedeemedAt); err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating redemptions: %w", err)
	}
	return records, nil
}

func (s *Store) AppendValidationAttempt(ctx context.Context, a *models.ValidationAttempt) error {
	var lat, lng *float64
	if a.Client.Location != nil {
		lat, lng = &a.Client.Location.Lat, &a.Client.Location.Lng
	}

	var extra []byte
	if len(a.Client.Extra) > 0 {
		var err error
		if extra, err = json.Marshal(a.Client.Extra); err != nil {
			return fmt.Errorf("failed to encode client metadata: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO validation_attempts
		(id, member_id, merchant_id, benefit_id, outcome, reason, device_class, latitude, longitude, extra, attempted_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.MemberID, a.MerchantID, a.BenefitID, a.Outcome, a.Reason,
		a.Client.DeviceClass, lat, lng, extra, a.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert validation attempt: %w", err)
	}
	return nil
}

func (s *Store) queryBenefits(ctx context.Context, sql string, args ...any) ([]models.Benefit, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query benefits: %w", err)
	}
	defer rows.Close()

	var benefits []models.Benefit
	for rows.Next() {
		b, err := scanBenefit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan benefit: %w", err)
		}
		benefits = append(benefits, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating benefits: %w", err)
	}
	return benefits, nil
}

func scanBenefit(row pgx.Row) (*models.Benefit, error) {
	var (
		b          models.Benefit
		validUntil *time.Time
		createdAt  *time.Time
	)
	err := row.Scan(&b.ID, &b.MerchantID, &b.Title, &b.Description, &b.Category,
		&b.Discount.Type, &b.Discount.Percent, &b.Discount.AmountCents, &b.Discount.Item,
		&b.Status, &validUntil, &b.Associations, &b.PerMemberLimit, &b.UsageCount, &createdAt)
	if err != nil {
		return nil, err
	}
	b.ValidUntil = validUntil
	if createdAt != nil {
		b.CreatedAt = *createdAt
	}
	return &b, nil
}
