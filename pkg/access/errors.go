package access

import (
	"errors"
	"fmt"

	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
)

var (
	ErrMemberNotFound   = fmt.Errorf("member %w", repository.ErrNotFound)
	ErrMerchantNotFound = fmt.Errorf("merchant %w", repository.ErrNotFound)
	ErrInvalidRequest   = errors.New("invalid request")
	ErrOperationFailed  = errors.New("operation failed")
)

// Reasons shown to the member next to a decision.
const (
	ReasonGranted             = "Acceso autorizado"
	ReasonMemberInactive      = "Tu membresía no está activa"
	ReasonMerchantInactive    = "El comercio no está activo"
	ReasonNoAssociation       = "No perteneces a ninguna asociación"
	ReasonBenefitNotFound     = "Beneficio no encontrado"
	ReasonBenefitUnavailable  = "El beneficio no está disponible"
	ReasonBenefitNotEligible  = "Este beneficio no está disponible para tu asociación"
	ReasonBenefitExpired      = "El beneficio ha vencido"
	ReasonUsageLimitReached   = "Has alcanzado el límite de usos para este beneficio"
	ReasonMerchantNotLinked   = "El comercio no está vinculado a tu asociación"
	ReasonAssociationMismatch = "La asociación indicada no corresponde a tu membresía"
)

// DenialError is returned by Redeem when the member is not eligible. Validation
// reports the same outcomes as a Decision instead.
type DenialError struct {
	Result models.Outcome
	Reason string
}

func (e *DenialError) Error() string {
	return fmt.Sprintf("redemption denied (%s): %s", e.Result, e.Reason)
}

func operationFailed(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrOperationFailed, op, err)
}
