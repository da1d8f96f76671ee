package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yourusername/verify-api/internal/pkg/errors"
	"github.com/yourusername/verify-api/internal/service"
)

// AuthHandler handles the login and password-reset flows. Both flows ride on
// the same OTP engine; tokens are returned in JSON with Bearer auth.
type AuthHandler struct {
	authService *service.AuthService
	otpService  *service.OTPService
}

func NewAuthHandler(authService *service.AuthService, otpService *service.OTPService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		otpService:  otpService,
	}
}

// --- Request/response DTOs ---

// DeviceSignalsRequest mirrors what the browser fingerprint collector sends.
// All three values are opaque to the server.
type DeviceSignalsRequest struct {
	Fingerprint        string `json:"fingerprint"`
	RelaxedFingerprint string `json:"relaxed_fingerprint"`
	ComponentsHash     string `json:"components_hash"`
}

func (r DeviceSignalsRequest) toSignals() service.DeviceSignals {
	return service.DeviceSignals{
		Fingerprint:        r.Fingerprint,
		RelaxedFingerprint: r.RelaxedFingerprint,
		ComponentsHash:     r.ComponentsHash,
	}
}

// LoginRequest is the password step of the login flow.
type LoginRequest struct {
	Email    string               `json:"email" binding:"required,email"`
	Password string               `json:"password" binding:"required"`
	Device   DeviceSignalsRequest `json:"device"`
}

// VerifyLoginRequest is the code entry step. The code is exactly 8 digits;
// leading zeros are significant, so it travels as a string.
type VerifyLoginRequest struct {
	Email  string               `json:"email" binding:"required,email"`
	Code   string               `json:"code" binding:"required,len=8,numeric"`
	Device DeviceSignalsRequest `json:"device"`
}

// ResendRequest asks for a fresh code for an in-flight challenge.
type ResendRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Purpose string `json:"purpose" binding:"omitempty,oneof=login password_reset"`
}

// PasswordResetRequest starts the reset flow.
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// PasswordResetConfirmRequest completes the reset flow.
type PasswordResetConfirmRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required,len=8,numeric"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=72"`
}

// --- Handlers ---

// Login handles the password step. Trusted devices receive a session token
// directly; everyone else gets an OTP challenge plus the expiry timestamp
// the client countdown is derived from.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password, req.Device.toSignals(), c.ClientIP())
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	if result.OTPRequired {
		c.JSON(http.StatusOK, gin.H{
			"otp_required": true,
			"email":        result.Challenge.Email,
			"expires_at":   result.Challenge.ExpiresAt,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"otp_required": false,
		"user_id":      result.Session.UserID,
		"access_token": result.Session.AccessToken,
		"expires_in":   result.Session.ExpiresIn,
		"token_type":   "Bearer",
	})
}

// VerifyLogin handles the code entry step.
func (h *AuthHandler) VerifyLogin(c *gin.Context) {
	var req VerifyLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	session, err := h.authService.VerifyLogin(c.Request.Context(), req.Email, req.Code, req.Device.toSignals(), c.ClientIP())
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      session.UserID,
		"access_token": session.AccessToken,
		"expires_in":   session.ExpiresIn,
		"token_type":   "Bearer",
	})
}

// ResendCode re-issues the code for a login or password-reset challenge.
// The cooldown is enforced here regardless of client-side timers.
func (h *AuthHandler) ResendCode(c *gin.Context) {
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	var challenge *service.Challenge
	var err error
	if req.Purpose == "password_reset" {
		challenge, err = h.authService.ResendPasswordResetCode(c.Request.Context(), req.Email)
	} else {
		challenge, err = h.authService.ResendLoginCode(c.Request.Context(), req.Email)
	}
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email":        challenge.Email,
		"expires_at":   challenge.ExpiresAt,
		"resend_count": challenge.ResendCount,
	})
}

// ChallengeStatus reports the state of the current challenge window so the
// client can render countdown and attempts-left from server-reported state
// instead of accumulating elapsed time locally.
func (h *AuthHandler) ChallengeStatus(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email query parameter is required", "error_type": "validation_error"})
		return
	}
	purpose := c.DefaultQuery("purpose", "login")
	if purpose != "login" && purpose != "password_reset" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purpose", "error_type": "validation_error"})
		return
	}

	status, err := h.otpService.Status(c.Request.Context(), email, purpose)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// RequestPasswordReset starts the reset flow. The response is uniform for
// known and unknown emails.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	challenge, err := h.authService.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	resp := gin.H{"message": "If the email exists, a reset code has been sent"}
	if challenge != nil {
		resp["expires_at"] = challenge.ExpiresAt
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmPasswordReset completes the reset flow.
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	err := h.authService.ConfirmPasswordReset(c.Request.Context(), req.Email, req.Code, req.NewPassword, c.ClientIP())
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}

// --- Error handling ---

// handleAuthError maps flow errors to HTTP responses with stable error_type
// strings. Every OTP failure kind gets a distinct type so the UI can render
// expired, wrong-code and locked-out states differently.
func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	log.Printf("[AuthHandler] auth error: %v", err)

	var invalidCode *service.InvalidCodeError
	var cooldown *service.CooldownError

	switch {
	case errors.As(err, &invalidCode):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":         "Invalid verification code",
			"error_type":    "otp_invalid_code",
			"attempts_left": invalidCode.AttemptsLeft,
		})
	case errors.As(err, &cooldown):
		c.Header("Retry-After", strconv.Itoa(cooldown.RetryAfterSec))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "Please wait before requesting a new code",
			"error_type":  "otp_cooldown_active",
			"retry_after": cooldown.RetryAfterSec,
		})
	case errors.Is(err, service.ErrOTPNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No verification in progress", "error_type": "otp_not_found"})
	case errors.Is(err, service.ErrOTPExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Verification code expired", "error_type": "otp_expired"})
	case errors.Is(err, service.ErrOTPAlreadyUsed):
		c.JSON(http.StatusConflict, gin.H{"error": "Verification code already used", "error_type": "otp_already_used"})
	case errors.Is(err, service.ErrOTPAttemptsExhausted):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many wrong attempts, request a new code", "error_type": "otp_attempts_exhausted"})
	case errors.Is(err, service.ErrOTPResendLimit):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Resend limit reached for this code", "error_type": "otp_resend_limit"})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "error_type": "invalid_credentials"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied", "error_type": "forbidden"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found", "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation error", "error_type": "validation_error"})
	case errors.Is(err, apperrors.ErrExpiredToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired", "error_type": "token_expired"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
	}
}
