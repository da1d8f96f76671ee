package repository

import (
	"time"

	"github.com/yourusername/verify-api/internal/domain/entity"
)

// VerificationEventRepository appends to and reads the verify audit trail.
type VerificationEventRepository interface {
	Create(event *entity.VerificationEvent) error
	ListBetween(from, to time.Time) ([]entity.VerificationEvent, error)
}
