package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/verify-api/internal/domain/entity"
	apperrors "github.com/yourusername/verify-api/internal/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrustedDeviceRepo implements repository.TrustedDeviceRepository on
// PostgreSQL via GORM.
type TrustedDeviceRepo struct {
	db *gorm.DB
}

func NewTrustedDeviceRepo(db *gorm.DB) *TrustedDeviceRepo {
	return &TrustedDeviceRepo{db: db}
}

func (r *TrustedDeviceRepo) GetByFingerprint(userID uint, fingerprint string) (*entity.TrustedDevice, error) {
	var device entity.TrustedDevice
	err := r.db.
		Where("user_id = ? AND device_fingerprint = ?", userID, fingerprint).
		First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trusted device: %w", err)
	}
	return &device, nil
}

func (r *TrustedDeviceRepo) GetByRelaxedFingerprint(userID uint, relaxedFingerprint string) (*entity.TrustedDevice, error) {
	var device entity.TrustedDevice
	err := r.db.
		Where("user_id = ? AND device_fingerprint_relaxed = ?", userID, relaxedFingerprint).
		Order("last_used_at DESC").
		First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trusted device by relaxed fingerprint: %w", err)
	}
	return &device, nil
}

// Upsert relies on the (user_id, device_fingerprint) unique index: a repeat
// verification of a known device refreshes its trust window and last-seen
// metadata instead of inserting a duplicate row.
func (r *TrustedDeviceRepo) Upsert(device *entity.TrustedDevice) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "device_fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"device_fingerprint_relaxed",
			"components_hash",
			"last_ip",
			"last_used_at",
			"trust_expires_at",
			"is_trusted",
			"fingerprint_version",
			"updated_at",
		}),
	}).Create(device).Error
	if err != nil {
		return fmt.Errorf("failed to upsert trusted device: %w", err)
	}
	return nil
}

func (r *TrustedDeviceRepo) UpdateLastSeen(id uint, ip string, at time.Time) error {
	return r.db.Model(&entity.TrustedDevice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_ip":      ip,
			"last_used_at": at,
		}).Error
}

func (r *TrustedDeviceRepo) ListByUser(userID uint) ([]*entity.TrustedDevice, error) {
	var devices []*entity.TrustedDevice
	err := r.db.
		Where("user_id = ?", userID).
		Order("last_used_at DESC").
		Find(&devices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trusted devices: %w", err)
	}
	return devices, nil
}

func (r *TrustedDeviceRepo) Revoke(userID uint, fingerprint string) error {
	return r.db.Model(&entity.TrustedDevice{}).
		Where("user_id = ? AND device_fingerprint = ?", userID, fingerprint).
		Update("is_trusted", false).Error
}

func (r *TrustedDeviceRepo) RevokeByID(userID, id uint) error {
	result := r.db.Model(&entity.TrustedDevice{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_trusted", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
