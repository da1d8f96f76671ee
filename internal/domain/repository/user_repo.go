package repository

import (
	"github.com/yourusername/verify-api/internal/domain/entity"
)

// UserRepository defines the account lookups the verification flows need.
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	UpdatePassword(userID uint, newPassword string) error
	MarkEmailVerified(userID uint) error
}
