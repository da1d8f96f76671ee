package entity

import "time"

// Verification outcome kinds recorded in the audit trail. The values match
// the error_type strings returned to clients.
const (
	VerificationOutcomeSuccess           = "success"
	VerificationOutcomeNotFound          = "not_found"
	VerificationOutcomeExpired           = "expired"
	VerificationOutcomeAlreadyUsed       = "already_used"
	VerificationOutcomeAttemptsExhausted = "attempts_exhausted"
	VerificationOutcomeInvalidCode       = "invalid_code"
)

// VerificationEvent is one append-only audit row per verify call. Replay of a
// consumed code (already_used) is treated as a security signal, so failures
// are recorded alongside successes.
type VerificationEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:100;not null;index" json:"email"`
	Purpose   string    `gorm:"size:20;not null" json:"purpose"`
	Outcome   string    `gorm:"size:30;not null;index" json:"outcome"`
	SourceIP  string    `gorm:"size:50;not null;default:''" json:"source_ip"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (VerificationEvent) TableName() string {
	return "verification_events"
}
