package service

import (
	"errors"
	"fmt"
)

// Verification flow errors. Each failure kind is distinct so handlers can map
// it to a stable error_type and the client can render a specific state
// (expired vs. wrong code vs. locked out).
var (
	// ErrOTPNotFound: no challenge exists for the email; the flow must restart.
	ErrOTPNotFound = errors.New("otp_not_found")

	// ErrOTPExpired: the challenge lifetime elapsed; a new code must be requested.
	ErrOTPExpired = errors.New("otp_expired")

	// ErrOTPAlreadyUsed: replay of a consumed code. Terminal for the record.
	ErrOTPAlreadyUsed = errors.New("otp_already_used")

	// ErrOTPAttemptsExhausted: the challenge is locked out; the account is not.
	ErrOTPAttemptsExhausted = errors.New("otp_attempts_exhausted")

	// ErrOTPInvalidCode: wrong code. Returned wrapped in InvalidCodeError.
	ErrOTPInvalidCode = errors.New("otp_invalid_code")

	// ErrOTPCooldownActive: resend requested before the cooldown elapsed.
	// Returned wrapped in CooldownError.
	ErrOTPCooldownActive = errors.New("otp_cooldown_active")

	// ErrOTPResendLimit: the operator resend cap was hit for this challenge
	// window; the user has to wait the window out.
	ErrOTPResendLimit = errors.New("otp_resend_limit")
)

// InvalidCodeError carries the remaining attempt budget so the client can
// warn before lockout. Matches ErrOTPInvalidCode under errors.Is.
type InvalidCodeError struct {
	AttemptsLeft int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid verification code, %d attempts left", e.AttemptsLeft)
}

func (e *InvalidCodeError) Is(target error) bool {
	return target == ErrOTPInvalidCode
}

// CooldownError carries the remaining wait so the server-side rejection can
// still drive a correct client countdown. Matches ErrOTPCooldownActive under
// errors.Is.
type CooldownError struct {
	RetryAfterSec int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("resend cooldown active, retry in %ds", e.RetryAfterSec)
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrOTPCooldownActive
}
