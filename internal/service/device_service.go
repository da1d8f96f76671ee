package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yourusername/verify-api/internal/config"
	"github.com/yourusername/verify-api/internal/domain/entity"
	"github.com/yourusername/verify-api/internal/domain/repository"
	apperrors "github.com/yourusername/verify-api/internal/pkg/errors"
)

// DeviceSignals is the opaque fingerprint pair supplied by the client-side
// collector. The service makes no assumptions about how either string was
// derived.
type DeviceSignals struct {
	Fingerprint        string `json:"fingerprint"`
	RelaxedFingerprint string `json:"relaxed_fingerprint"`
	ComponentsHash     string `json:"components_hash"`
}

func (d DeviceSignals) isEmpty() bool {
	return strings.TrimSpace(d.Fingerprint) == ""
}

// DeviceService is the trusted-device registry: it decides whether a client
// may skip the OTP challenge and records devices after successful
// verification.
type DeviceService struct {
	deviceRepo         repository.TrustedDeviceRepository
	trustDuration      time.Duration
	fingerprintVersion int
}

func NewDeviceService(deviceRepo repository.TrustedDeviceRepository, cfg config.TrustConfig) (*DeviceService, error) {
	if deviceRepo == nil {
		return nil, fmt.Errorf("trusted device repository is required")
	}
	duration := cfg.Duration()
	if duration <= 0 {
		duration = 720 * time.Hour
	}
	version := cfg.FingerprintVersion
	if version <= 0 {
		version = 1
	}
	return &DeviceService{
		deviceRepo:         deviceRepo,
		trustDuration:      duration,
		fingerprintVersion: version,
	}, nil
}

// IsTrusted reports whether the device may skip OTP. The strict fingerprint
// is tried first; the relaxed tier is the fallback for minor client drift.
// On a hit, last-seen metadata refreshes without extending the trust window.
func (s *DeviceService) IsTrusted(ctx context.Context, userID uint, signals DeviceSignals, sourceIP string) (bool, error) {
	if signals.isEmpty() {
		return false, nil
	}

	device, err := s.deviceRepo.GetByFingerprint(userID, signals.Fingerprint)
	if err == apperrors.ErrNotFound && strings.TrimSpace(signals.RelaxedFingerprint) != "" {
		device, err = s.deviceRepo.GetByRelaxedFingerprint(userID, signals.RelaxedFingerprint)
	}
	if err != nil {
		if err == apperrors.ErrNotFound {
			return false, nil
		}
		return false, err
	}

	now := time.Now()
	if !device.IsCurrentlyTrusted(now) {
		return false, nil
	}

	if err := s.deviceRepo.UpdateLastSeen(device.ID, sourceIP, now); err != nil {
		log.Printf("[DeviceService] failed to refresh last seen for device %d: %v", device.ID, err)
	}
	return true, nil
}

// Remember upserts the device after a successful verification: a new device
// gets a fresh row, a known one has its trust window extended by the
// configured duration.
func (s *DeviceService) Remember(ctx context.Context, userID uint, signals DeviceSignals, sourceIP string) error {
	if signals.isEmpty() {
		// Nothing to remember without a fingerprint; the next login simply
		// goes through OTP again.
		return nil
	}

	now := time.Now()
	device := &entity.TrustedDevice{
		UserID:                   userID,
		DeviceFingerprint:        signals.Fingerprint,
		DeviceFingerprintRelaxed: signals.RelaxedFingerprint,
		ComponentsHash:           signals.ComponentsHash,
		LastIP:                   sourceIP,
		LastUsedAt:               now,
		TrustExpiresAt:           now.Add(s.trustDuration),
		IsTrusted:                true,
		FingerprintVersion:       s.fingerprintVersion,
	}
	if err := s.deviceRepo.Upsert(device); err != nil {
		return fmt.Errorf("failed to remember trusted device: %w", err)
	}
	return nil
}

// List returns the user's device rows, trusted or not, for the devices page.
func (s *DeviceService) List(ctx context.Context, userID uint) ([]*entity.TrustedDevice, error) {
	return s.deviceRepo.ListByUser(userID)
}

// Revoke clears trust for a device by fingerprint ("log out this device").
func (s *DeviceService) Revoke(ctx context.Context, userID uint, fingerprint string) error {
	if strings.TrimSpace(fingerprint) == "" {
		return fmt.Errorf("%w: fingerprint is required", apperrors.ErrValidation)
	}
	return s.deviceRepo.Revoke(userID, fingerprint)
}

// RevokeByID clears trust for a device by its row ID.
func (s *DeviceService) RevokeByID(ctx context.Context, userID, deviceID uint) error {
	return s.deviceRepo.RevokeByID(userID, deviceID)
}
