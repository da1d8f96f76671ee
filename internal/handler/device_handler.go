package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/verify-api/internal/domain/entity"
	apperrors "github.com/yourusername/verify-api/internal/pkg/errors"
	"github.com/yourusername/verify-api/internal/service"
)

// DeviceHandler exposes the trusted-device registry to authenticated users:
// list your devices, revoke one ("log out this device").
type DeviceHandler struct {
	deviceService *service.DeviceService
}

func NewDeviceHandler(deviceService *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{deviceService: deviceService}
}

// DeviceInfo is the client-safe view of a trusted device row.
type DeviceInfo struct {
	ID             uint      `json:"id"`
	Fingerprint    string    `json:"fingerprint"`
	LastIP         string    `json:"last_ip"`
	LastUsedAt     time.Time `json:"last_used_at"`
	TrustExpiresAt time.Time `json:"trust_expires_at"`
	Trusted        bool      `json:"trusted"`
}

// RevokeDeviceRequest identifies the device to revoke by row ID.
type RevokeDeviceRequest struct {
	DeviceID uint `json:"device_id" binding:"required"`
}

// ListDevices returns the caller's devices. Trusted is the effective state:
// an expired window reports false even while is_trusted is still set.
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
		return
	}

	devices, err := h.deviceService.List(c.Request.Context(), userID.(uint))
	if err != nil {
		log.Printf("[DeviceHandler] failed to list devices: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list devices", "error_type": "internal_error"})
		return
	}

	now := time.Now()
	result := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		result = append(result, deviceInfo(d, now))
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": result,
		"count":   len(result),
	})
}

// RevokeDevice clears trust for one of the caller's devices.
func (h *DeviceHandler) RevokeDevice(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
		return
	}

	var req RevokeDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	if err := h.deviceService.RevokeByID(c.Request.Context(), userID.(uint), req.DeviceID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found", "error_type": "not_found"})
			return
		}
		log.Printf("[DeviceHandler] failed to revoke device %d: %v", req.DeviceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke device", "error_type": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Device trust revoked",
		"device_id": req.DeviceID,
	})
}

func deviceInfo(d *entity.TrustedDevice, now time.Time) DeviceInfo {
	return DeviceInfo{
		ID:             d.ID,
		Fingerprint:    d.DeviceFingerprint,
		LastIP:         d.LastIP,
		LastUsedAt:     d.LastUsedAt,
		TrustExpiresAt: d.TrustExpiresAt,
		Trusted:        d.IsCurrentlyTrusted(now),
	}
}
