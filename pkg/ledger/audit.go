package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medreza/honcho-benefit-service/pkg/models"
)

type AuditStore interface {
	AppendValidationAttempt(ctx context.Context, attempt *models.ValidationAttempt) error
}

// AuditLog persists every validation attempt, granted or not.
type AuditLog struct {
	store AuditStore
	now   func() time.Time
}

func NewAuditLog(store AuditStore) *AuditLog {
	return NewAuditLogWithClock(store, time.Now)
}

func NewAuditLogWithClock(store AuditStore, now func() time.Time) *AuditLog {
	return &AuditLog{store: store, now: now}
}

func (a *AuditLog) Write(ctx context.Context, attempt models.ValidationAttempt) (*models.ValidationAttempt, error) {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = a.now().UTC()
	}

	if err := a.store.AppendValidationAttempt(ctx, &attempt); err != nil {
		return nil, fmt.Errorf("failed to write audit record: %w", err)
	}
	return &attempt, nil
}
