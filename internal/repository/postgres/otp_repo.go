package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/verify-api/internal/domain/entity"
	apperrors "github.com/yourusername/verify-api/internal/pkg/errors"
	"gorm.io/gorm"
)

// OTPRepo implements repository.OTPRepository on PostgreSQL via GORM.
type OTPRepo struct {
	db *gorm.DB
}

func NewOTPRepo(db *gorm.DB) *OTPRepo {
	return &OTPRepo{db: db}
}

func (r *OTPRepo) Create(record *entity.OTPRecord) error {
	return r.db.Create(record).Error
}

// GetLatestByEmail returns the newest record for (email, purpose). The
// ordering is explicit: the most recent created_at wins, so a raced
// double-issue resolves to the later record without invalidating the older.
func (r *OTPRepo) GetLatestByEmail(email, purpose string) (*entity.OTPRecord, error) {
	var record entity.OTPRecord
	err := r.db.
		Where("email = ? AND purpose = ?", email, purpose).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest otp record: %w", err)
	}
	return &record, nil
}

// IncrementAttempts bumps the counter inside the database and returns the new
// value, so concurrent failed submissions serialize on the row instead of
// doing a read-modify-write in Go.
func (r *OTPRepo) IncrementAttempts(id uint) (int, error) {
	var attempts int
	err := r.db.
		Raw("UPDATE otp_records SET attempts = attempts + 1 WHERE id = ? RETURNING attempts", id).
		Scan(&attempts).Error
	if err != nil {
		return 0, fmt.Errorf("failed to increment otp attempts: %w", err)
	}
	return attempts, nil
}

// MarkUsed consumes the record. The WHERE used_at IS NULL guard makes used_at
// write-once: the loser of a raced double-success sees zero rows affected.
func (r *OTPRepo) MarkUsed(id uint, sourceIP string, usedAt time.Time) (bool, error) {
	result := r.db.Model(&entity.OTPRecord{}).
		Where("id = ? AND used_at IS NULL", id).
		Updates(map[string]interface{}{
			"used_at": usedAt,
			"used_ip": sourceIP,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark otp record used: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *OTPRepo) DeleteExpiredBefore(cutoff time.Time) (int64, error) {
	result := r.db.
		Where("expires_at < ?", cutoff).
		Delete(&entity.OTPRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired otp records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
