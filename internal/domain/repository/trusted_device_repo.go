package repository

import (
	"time"

	"github.com/yourusername/verify-api/internal/domain/entity"
)

// TrustedDeviceRepository persists the per-user device trust registry.
type TrustedDeviceRepository interface {
	// GetByFingerprint looks up a device by the strict fingerprint.
	// Returns apperrors.ErrNotFound when absent.
	GetByFingerprint(userID uint, fingerprint string) (*entity.TrustedDevice, error)

	// GetByRelaxedFingerprint is the fallback lookup tolerating minor client
	// drift. Returns apperrors.ErrNotFound when absent.
	GetByRelaxedFingerprint(userID uint, relaxedFingerprint string) (*entity.TrustedDevice, error)

	// Upsert creates the device row or, on a (user_id, device_fingerprint)
	// conflict, refreshes last_used_at, last_ip, trust_expires_at and the
	// secondary fingerprint fields.
	Upsert(device *entity.TrustedDevice) error

	// UpdateLastSeen refreshes last-seen metadata on a recognized login
	// without extending the trust window.
	UpdateLastSeen(id uint, ip string, at time.Time) error

	// ListByUser returns all device rows for a user, newest first.
	ListByUser(userID uint) ([]*entity.TrustedDevice, error)

	// Revoke clears is_trusted for one device of the user.
	Revoke(userID uint, fingerprint string) error

	// RevokeByID clears is_trusted by row ID, scoped to the owning user.
	RevokeByID(userID, id uint) error
}
