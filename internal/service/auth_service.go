package service

import (
	"context"
	"fmt"
	"log"

	"github.com/yourusername/verify-api/internal/domain/entity"
	"github.com/yourusername/verify-api/internal/domain/repository"
	apperrors "github.com/yourusername/verify-api/internal/pkg/errors"
	"github.com/yourusername/verify-api/pkg/auth"
)

// SessionResult is returned once a login has fully cleared verification.
type SessionResult struct {
	UserID      uint   `json:"user_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// LoginResult is the outcome of the password step. Either the device was
// trusted and a session is returned directly, or an OTP challenge was issued
// and the client moves to the code entry screen.
type LoginResult struct {
	OTPRequired bool           `json:"otp_required"`
	Session     *SessionResult `json:"session,omitempty"`
	Challenge   *Challenge     `json:"challenge,omitempty"`
}

// AuthService drives the login and password-reset flows on top of the OTP
// engine and the trusted-device registry.
type AuthService struct {
	userRepo      repository.UserRepository
	otpService    *OTPService
	deviceService *DeviceService
	jwtService    *auth.JWTService
}

func NewAuthService(
	userRepo repository.UserRepository,
	otpService *OTPService,
	deviceService *DeviceService,
	jwtService *auth.JWTService,
) (*AuthService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if otpService == nil {
		return nil, fmt.Errorf("otp service is required")
	}
	if deviceService == nil {
		return nil, fmt.Errorf("device service is required")
	}
	if jwtService == nil {
		return nil, fmt.Errorf("jwt service is required")
	}
	return &AuthService{
		userRepo:      userRepo,
		otpService:    otpService,
		deviceService: deviceService,
		jwtService:    jwtService,
	}, nil
}

// Login checks credentials, then consults the device registry: a currently
// trusted device skips straight to a session, anything else gets an OTP
// challenge issued to the account email.
func (s *AuthService) Login(ctx context.Context, email, password string, signals DeviceSignals, sourceIP string) (*LoginResult, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if err == apperrors.ErrNotFound {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, apperrors.ErrUnauthorized
	}

	trusted, err := s.deviceService.IsTrusted(ctx, user.ID, signals, sourceIP)
	if err != nil {
		// A registry read failure must not lock the user out; fall back to
		// the OTP path.
		log.Printf("[AuthService] trusted device lookup failed for user %d: %v", user.ID, err)
		trusted = false
	}
	if trusted {
		session, err := s.issueSession(user)
		if err != nil {
			return nil, err
		}
		return &LoginResult{OTPRequired: false, Session: session}, nil
	}

	challenge, err := s.otpService.Issue(ctx, user.Email, entity.OTPPurposeLogin)
	if err != nil {
		return nil, err
	}
	return &LoginResult{OTPRequired: true, Challenge: challenge}, nil
}

// VerifyLogin consumes the login challenge. On success the device is
// remembered (or its trust window refreshed) and a session is issued.
func (s *AuthService) VerifyLogin(ctx context.Context, email, code string, signals DeviceSignals, sourceIP string) (*SessionResult, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if err == apperrors.ErrNotFound {
			return nil, ErrOTPNotFound
		}
		return nil, err
	}

	if err := s.otpService.Verify(ctx, user.Email, entity.OTPPurposeLogin, code, sourceIP); err != nil {
		return nil, err
	}

	if err := s.deviceService.Remember(ctx, user.ID, signals, sourceIP); err != nil {
		// Trust registration failing only means the next login goes through
		// OTP again; the verification itself stands.
		log.Printf("[AuthService] failed to remember device for user %d: %v", user.ID, err)
	}
	if err := s.userRepo.MarkEmailVerified(user.ID); err != nil {
		log.Printf("[AuthService] failed to mark email verified for user %d: %v", user.ID, err)
	}

	return s.issueSession(user)
}

// ResendLoginCode re-issues the login challenge, subject to the cooldown.
func (s *AuthService) ResendLoginCode(ctx context.Context, email string) (*Challenge, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if err == apperrors.ErrNotFound {
			return nil, ErrOTPNotFound
		}
		return nil, err
	}
	return s.otpService.Resend(ctx, user.Email, entity.OTPPurposeLogin)
}

// RequestPasswordReset issues a reset challenge. For unknown emails it
// returns (nil, nil) so the handler can answer uniformly and not leak which
// addresses have accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*Challenge, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if err == apperrors.ErrNotFound {
			log.Printf("[AuthService] password reset requested for unknown email")
			return nil, nil
		}
		return nil, err
	}
	return s.otpService.Issue(ctx, user.Email, entity.OTPPurposePasswordReset)
}

// ResendPasswordResetCode re-issues the reset challenge.
func (s *AuthService) ResendPasswordResetCode(ctx context.Context, email string) (*Challenge, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if err == apperrors.ErrNotFound {
			return nil, ErrOTPNotFound
		}
		return nil, err
	}
	return s.otpService.Resend(ctx, user.Email, entity.OTPPurposePasswordReset)
}

// ConfirmPasswordReset consumes the reset challenge and sets the new
// password. A login-purpose code cannot confirm a reset.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, email, code, newPassword, sourceIP string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", apperrors.ErrValidation)
	}

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if err == apperrors.ErrNotFound {
			return ErrOTPNotFound
		}
		return err
	}

	if err := s.otpService.Verify(ctx, user.Email, entity.OTPPurposePasswordReset, code, sourceIP); err != nil {
		return err
	}

	if err := s.userRepo.UpdatePassword(user.ID, newPassword); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// GetUserByID loads a user for authenticated endpoints.
func (s *AuthService) GetUserByID(id uint) (*entity.User, error) {
	return s.userRepo.GetByID(id)
}

func (s *AuthService) issueSession(user *entity.User) (*SessionResult, error) {
	token, expiresIn, err := s.jwtService.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	return &SessionResult{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		AccessToken: token,
		ExpiresIn:   expiresIn,
	}, nil
}
