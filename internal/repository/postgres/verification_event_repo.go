package postgres

import (
	"fmt"
	"time"

	"github.com/yourusername/verify-api/internal/domain/entity"
	"gorm.io/gorm"
)

// VerificationEventRepo implements repository.VerificationEventRepository.
type VerificationEventRepo struct {
	db *gorm.DB
}

func NewVerificationEventRepo(db *gorm.DB) *VerificationEventRepo {
	return &VerificationEventRepo{db: db}
}

func (r *VerificationEventRepo) Create(event *entity.VerificationEvent) error {
	return r.db.Create(event).Error
}

func (r *VerificationEventRepo) ListBetween(from, to time.Time) ([]entity.VerificationEvent, error) {
	var events []entity.VerificationEvent
	err := r.db.
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list verification events: %w", err)
	}
	return events, nil
}
