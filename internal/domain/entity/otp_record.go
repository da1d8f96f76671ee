package entity

import "time"

// OTP challenge purposes. A record issued for one purpose can never be
// consumed by a flow running under another.
const (
	OTPPurposeLogin         = "login"
	OTPPurposePasswordReset = "password_reset"
)

// OTPRecord stores one verification challenge: a keyed hash of the code,
// never the plaintext. The latest record per (email, purpose) is the only
// authoritative one; superseded records simply age out.
type OTPRecord struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Email       string     `gorm:"size:100;not null;index:idx_otp_records_lookup" json:"email"`
	Purpose     string     `gorm:"size:20;not null;default:'login';index:idx_otp_records_lookup" json:"purpose"`
	CodeHash    string     `gorm:"size:64;not null" json:"-"`
	ExpiresAt   time.Time  `gorm:"not null;index" json:"expires_at"`
	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	UsedAt      *time.Time `gorm:"index" json:"used_at,omitempty"`
	UsedIP      string     `gorm:"size:50;not null;default:''" json:"used_ip,omitempty"`
	ResendCount int        `gorm:"not null;default:1" json:"resend_count"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (OTPRecord) TableName() string {
	return "otp_records"
}

// IsUsed reports whether the challenge has already been consumed.
// A used record is terminal and must never validate again.
func (o *OTPRecord) IsUsed() bool {
	return o.UsedAt != nil
}

// IsExpired reports whether the challenge lifetime has elapsed.
// The boundary instant itself counts as expired.
func (o *OTPRecord) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// AttemptsLeft returns how many verification attempts remain before lockout.
func (o *OTPRecord) AttemptsLeft(maxAttempts int) int {
	left := maxAttempts - o.Attempts
	if left < 0 {
		return 0
	}
	return left
}
