package entity

import "time"

// TrustedDevice stores a client previously verified for a user. Such a device
// may skip the OTP challenge until its trust window closes.
//
// Two fingerprint tiers are kept on the same row: the strict fingerprint is
// the primary signal, the relaxed one tolerates minor client drift (browser
// minor-version bumps) without forcing re-verification.
type TrustedDevice struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	UserID                   uint      `gorm:"not null;uniqueIndex:idx_trusted_devices_user_fp" json:"user_id"`
	DeviceFingerprint        string    `gorm:"size:128;not null;uniqueIndex:idx_trusted_devices_user_fp" json:"device_fingerprint"`
	DeviceFingerprintRelaxed string    `gorm:"size:128;not null;index" json:"device_fingerprint_relaxed"`
	ComponentsHash           string    `gorm:"size:128;not null;default:''" json:"-"`
	LastIP                   string    `gorm:"size:50;not null;default:''" json:"last_ip"`
	LastUsedAt               time.Time `gorm:"not null" json:"last_used_at"`
	TrustExpiresAt           time.Time `gorm:"not null;index" json:"trust_expires_at"`
	IsTrusted                bool      `gorm:"not null;default:true" json:"is_trusted"`
	FingerprintVersion       int       `gorm:"not null;default:1" json:"fingerprint_version"`
	CreatedAt                time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt                time.Time `gorm:"not null" json:"updated_at"`
}

func (TrustedDevice) TableName() string {
	return "trusted_devices"
}

// IsCurrentlyTrusted reports whether the device may skip OTP at the given
// instant. Expiry is checked lazily here; there is no background sweep, so a
// stale is_trusted=true row must still fail this check.
func (d *TrustedDevice) IsCurrentlyTrusted(now time.Time) bool {
	return d.IsTrusted && now.Before(d.TrustExpiresAt)
}
