package repository

import (
	"time"

	"github.com/yourusername/verify-api/internal/domain/entity"
)

// OTPRepository persists verification challenges.
type OTPRepository interface {
	// Create inserts a new challenge record. Older records for the same
	// (email, purpose) are not touched; lookup order makes them stale.
	Create(record *entity.OTPRecord) error

	// GetLatestByEmail returns the most recently created record for the
	// (email, purpose) pair, explicitly ordered by created_at descending.
	// Returns apperrors.ErrNotFound when no record exists.
	GetLatestByEmail(email, purpose string) (*entity.OTPRecord, error)

	// IncrementAttempts atomically bumps the attempt counter of a record and
	// returns the new value. The increment happens in SQL so two concurrent
	// failed submissions cannot both observe the same pre-increment count.
	IncrementAttempts(id uint) (int, error)

	// MarkUsed sets used_at/used_ip once. Returns false when the record was
	// already consumed (used_at was no longer NULL), which callers must treat
	// as a replay.
	MarkUsed(id uint, sourceIP string, usedAt time.Time) (bool, error)

	// DeleteExpiredBefore removes records whose expiry is older than the
	// cutoff. Used by the background retention sweep, never by the request
	// path.
	DeleteExpiredBefore(cutoff time.Time) (int64, error)
}
