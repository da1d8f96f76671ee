package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/verify-api/internal/config"
	"github.com/yourusername/verify-api/internal/domain/entity"
	"github.com/yourusername/verify-api/internal/domain/repository"
	apperrors "github.com/yourusername/verify-api/internal/pkg/errors"
)

const otpCodeLength = 8

// Challenge is what issuance returns to the caller: the expiry drives the
// client countdown, the plaintext code goes only to the mail dispatch.
type Challenge struct {
	Email       string    `json:"email"`
	Purpose     string    `json:"purpose"`
	ExpiresAt   time.Time `json:"expires_at"`
	ResendCount int       `json:"resend_count"`
}

// ChallengeStatus describes the current challenge window for an email, used
// by clients to render countdowns from server-reported state instead of
// accumulating elapsed time locally.
type ChallengeStatus struct {
	Email                string     `json:"email"`
	Purpose              string     `json:"purpose"`
	Active               bool       `json:"active"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	AttemptsLeft         int        `json:"attempts_left"`
	ResendCount          int        `json:"resend_count"`
	CanResend            bool       `json:"can_resend"`
	CooldownRemainingSec int        `json:"cooldown_remaining_sec"`
}

// OTPService owns the challenge lifecycle: issue, resend, verify, expire.
// Codes are stored as an HMAC-SHA256 over the plaintext, keyed with the
// server secret; the plaintext exists only in the outgoing email.
type OTPService struct {
	otpRepo        repository.OTPRepository
	eventRepo      repository.VerificationEventRepository
	emailService   EmailService
	lifetime       time.Duration
	resendCooldown time.Duration
	maxAttempts    int
	maxResends     int
	secret         []byte
}

func NewOTPService(
	otpRepo repository.OTPRepository,
	eventRepo repository.VerificationEventRepository,
	emailService EmailService,
	cfg config.OTPConfig,
) (*OTPService, error) {
	if otpRepo == nil {
		return nil, fmt.Errorf("otp repository is required")
	}
	if eventRepo == nil {
		return nil, fmt.Errorf("verification event repository is required")
	}
	if emailService == nil {
		return nil, fmt.Errorf("email service is required")
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("otp secret is required")
	}

	lifetime := cfg.Lifetime()
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	cooldown := cfg.ResendCooldown()
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	maxResends := cfg.MaxResends
	if maxResends <= 0 {
		maxResends = 5
	}

	return &OTPService{
		otpRepo:        otpRepo,
		eventRepo:      eventRepo,
		emailService:   emailService,
		lifetime:       lifetime,
		resendCooldown: cooldown,
		maxAttempts:    maxAttempts,
		maxResends:     maxResends,
		secret:         []byte(cfg.Secret),
	}, nil
}

// Issue creates a fresh challenge for the email and dispatches the code.
// A new record supersedes any prior active one for the same (email, purpose):
// lookups take the latest, so the old record goes stale without mutation.
func (s *OTPService) Issue(ctx context.Context, email, purpose string) (*Challenge, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.createChallenge(ctx, email, purpose, 1)
}

// Resend re-issues a challenge, enforcing the cooldown and the operator
// resend cap server-side regardless of what the client UI allowed.
func (s *OTPService) Resend(ctx context.Context, email, purpose string) (*Challenge, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	latest, err := s.otpRepo.GetLatestByEmail(email, purpose)
	if err != nil {
		if err == apperrors.ErrNotFound {
			return nil, ErrOTPNotFound
		}
		return nil, err
	}

	now := time.Now()
	cooldownEnds := latest.CreatedAt.Add(s.resendCooldown)
	if now.Before(cooldownEnds) {
		return nil, &CooldownError{RetryAfterSec: int(cooldownEnds.Sub(now).Seconds()) + 1}
	}

	// A consumed or expired record closes its challenge window; the resend
	// counter starts over. Within a live window the cap applies.
	resendCount := 1
	if !latest.IsUsed() && !latest.IsExpired(now) {
		if latest.ResendCount >= s.maxResends {
			return nil, ErrOTPResendLimit
		}
		resendCount = latest.ResendCount + 1
	}

	return s.createChallenge(ctx, email, purpose, resendCount)
}

func (s *OTPService) createChallenge(ctx context.Context, email, purpose string, resendCount int) (*Challenge, error) {
	code, err := generateOTPCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate otp code: %w", err)
	}

	now := time.Now()
	record := &entity.OTPRecord{
		Email:       email,
		Purpose:     purpose,
		CodeHash:    s.hashCode(code),
		ExpiresAt:   now.Add(s.lifetime),
		Attempts:    0,
		ResendCount: resendCount,
		CreatedAt:   now,
	}
	if err := s.otpRepo.Create(record); err != nil {
		return nil, fmt.Errorf("failed to create otp record: %w", err)
	}

	// The record is durable before dispatch is attempted; a slow or failing
	// mail transport must not block the response or corrupt challenge state.
	s.dispatchCode(email, code, purpose, record.ExpiresAt)

	return &Challenge{
		Email:       email,
		Purpose:     purpose,
		ExpiresAt:   record.ExpiresAt,
		ResendCount: record.ResendCount,
	}, nil
}

// dispatchCode sends the email on a detached goroutine with its own timeout.
// Failures are logged and swallowed: the user can still succeed if the email
// arrives late, or request a resend.
func (s *OTPService) dispatchCode(email, code, purpose string, expiresAt time.Time) {
	idempotencyKey := fmt.Sprintf("otp-%s-%s", purpose, uuid.NewString())
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.emailService.SendVerificationCode(sendCtx, email, code, purpose, expiresAt, idempotencyKey); err != nil {
			log.Printf("[OTPService] failed to send verification email to %s: %v", email, err)
		}
	}()
}

// Verify checks a submitted code against the latest challenge for the email.
// Every outcome, success or failure, lands in the audit trail.
func (s *OTPService) Verify(ctx context.Context, email, purpose, submittedCode, sourceIP string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	record, err := s.otpRepo.GetLatestByEmail(email, purpose)
	if err != nil {
		if err == apperrors.ErrNotFound {
			s.recordEvent(email, purpose, entity.VerificationOutcomeNotFound, sourceIP)
			return ErrOTPNotFound
		}
		return err
	}

	now := time.Now()
	if record.IsExpired(now) {
		s.recordEvent(email, purpose, entity.VerificationOutcomeExpired, sourceIP)
		return ErrOTPExpired
	}
	if record.IsUsed() {
		s.recordEvent(email, purpose, entity.VerificationOutcomeAlreadyUsed, sourceIP)
		return ErrOTPAlreadyUsed
	}
	if record.Attempts >= s.maxAttempts {
		// Lockout does not consume another attempt.
		s.recordEvent(email, purpose, entity.VerificationOutcomeAttemptsExhausted, sourceIP)
		return ErrOTPAttemptsExhausted
	}

	expected := s.hashCode(submittedCode)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(record.CodeHash)) != 1 {
		attempts, incErr := s.otpRepo.IncrementAttempts(record.ID)
		if incErr != nil {
			return fmt.Errorf("failed to increment otp attempts: %w", incErr)
		}
		s.recordEvent(email, purpose, entity.VerificationOutcomeInvalidCode, sourceIP)
		left := s.maxAttempts - attempts
		if left < 0 {
			left = 0
		}
		return &InvalidCodeError{AttemptsLeft: left}
	}

	consumed, err := s.otpRepo.MarkUsed(record.ID, sourceIP, now)
	if err != nil {
		return fmt.Errorf("failed to mark otp record used: %w", err)
	}
	if !consumed {
		// Lost a race against another successful submission of the same code.
		s.recordEvent(email, purpose, entity.VerificationOutcomeAlreadyUsed, sourceIP)
		return ErrOTPAlreadyUsed
	}

	s.recordEvent(email, purpose, entity.VerificationOutcomeSuccess, sourceIP)
	return nil
}

// Status reports the current challenge window for client display.
func (s *OTPService) Status(ctx context.Context, email, purpose string) (*ChallengeStatus, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	status := &ChallengeStatus{
		Email:     email,
		Purpose:   purpose,
		CanResend: true,
	}

	latest, err := s.otpRepo.GetLatestByEmail(email, purpose)
	if err != nil {
		if err == apperrors.ErrNotFound {
			return status, nil
		}
		return nil, err
	}

	now := time.Now()
	if !latest.IsUsed() && !latest.IsExpired(now) {
		exp := latest.ExpiresAt
		status.Active = true
		status.ExpiresAt = &exp
		status.AttemptsLeft = latest.AttemptsLeft(s.maxAttempts)
		status.ResendCount = latest.ResendCount
		if latest.ResendCount >= s.maxResends {
			status.CanResend = false
		}
	}

	cooldownRemaining := int(latest.CreatedAt.Add(s.resendCooldown).Sub(now).Seconds())
	if cooldownRemaining > 0 {
		status.CanResend = false
		status.CooldownRemainingSec = cooldownRemaining
	}

	return status, nil
}

// recordEvent appends to the audit trail. Auditing is best-effort: a failed
// insert is logged, never surfaced to the verification caller.
func (s *OTPService) recordEvent(email, purpose, outcome, sourceIP string) {
	event := &entity.VerificationEvent{
		Email:    email,
		Purpose:  purpose,
		Outcome:  outcome,
		SourceIP: sourceIP,
	}
	if err := s.eventRepo.Create(event); err != nil {
		log.Printf("[OTPService] failed to record verification event (%s/%s): %v", email, outcome, err)
	}
}

// hashCode computes the keyed hash stored at rest. HMAC keying means a stolen
// table alone is not enough to brute-force the 8-digit space offline.
func (s *OTPService) hashCode(code string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// generateOTPCode returns a cryptographically random 8-digit numeric code,
// zero-padded. Comparison is always string-exact, preserving leading zeros.
func generateOTPCode() (string, error) {
	max := big.NewInt(100000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpCodeLength, n.Int64()), nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: invalid email address", apperrors.ErrValidation)
	}
	return email, nil
}
