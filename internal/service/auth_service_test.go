package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/verify-api/internal/domain/entity"
	apperrors "github.com/yourusername/verify-api/internal/pkg/errors"
	"github.com/yourusername/verify-api/pkg/auth"
	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// Mocks for the AuthService tests
// ============================================================================

// MockUserRepository implements repository.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) UpdatePassword(userID uint, newPassword string) error {
	args := m.Called(userID, newPassword)
	return args.Error(0)
}

func (m *MockUserRepository) MarkEmailVerified(userID uint) error {
	args := m.Called(userID)
	return args.Error(0)
}

// ============================================================================
// Helpers
// ============================================================================

type authServiceFixture struct {
	userRepo   *MockUserRepository
	otpRepo    *MockOTPRepository
	eventRepo  *MockVerificationEventRepository
	deviceRepo *MockTrustedDeviceRepository
	otpService *OTPService
	service    *AuthService
}

func createTestAuthService(t *testing.T) *authServiceFixture {
	t.Helper()

	userRepo := new(MockUserRepository)
	otpRepo := new(MockOTPRepository)
	eventRepo := new(MockVerificationEventRepository)
	deviceRepo := new(MockTrustedDeviceRepository)

	otpService := createTestOTPService(otpRepo, eventRepo, nil)
	deviceService := createTestDeviceService(deviceRepo)

	jwtService, err := auth.NewJWTService("test-jwt-secret", 1)
	require.NoError(t, err)

	return &authServiceFixture{
		userRepo:   userRepo,
		otpRepo:    otpRepo,
		eventRepo:  eventRepo,
		deviceRepo: deviceRepo,
		otpService: otpService,
		service: &AuthService{
			userRepo:      userRepo,
			otpService:    otpService,
			deviceService: deviceService,
			jwtService:    jwtService,
		},
	}
}

func testUser(t *testing.T, plainPassword string) *entity.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &entity.User{
		ID:       1,
		Email:    "user@example.com",
		Password: string(hashed),
		Role:     "user",
	}
}

// ============================================================================
// Login
// ============================================================================

func TestAuthService_Login_WrongPassword(t *testing.T) {
	// Arrange
	f := createTestAuthService(t)
	f.userRepo.On("GetByEmail", "user@example.com").Return(testUser(t, "correct-password"), nil)

	// Act
	result, err := f.service.Login(context.Background(), "user@example.com", "wrong-password", DeviceSignals{}, "")

	// Assert
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	f.otpRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	// Arrange
	f := createTestAuthService(t)
	f.userRepo.On("GetByEmail", "nobody@example.com").Return(nil, apperrors.ErrNotFound)

	// Act
	result, err := f.service.Login(context.Background(), "nobody@example.com", "whatever", DeviceSignals{}, "")

	// Assert
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized, "unknown email and wrong password must be indistinguishable")
}

func TestAuthService_Login_TrustedDeviceSkipsChallenge(t *testing.T) {
	// Arrange
	f := createTestAuthService(t)
	f.userRepo.On("GetByEmail", "user@example.com").Return(testUser(t, "correct-password"), nil)

	device := trustedDeviceRow()
	f.deviceRepo.On("GetByFingerprint", uint(1), "fp-strict-abc").Return(device, nil)
	f.deviceRepo.On("UpdateLastSeen", device.ID, "203.0.113.7", mock.AnythingOfType("time.Time")).Return(nil)

	// Act
	result, err := f.service.Login(context.Background(), "user@example.com", "correct-password", testSignals, "203.0.113.7")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.OTPRequired)
	require.NotNil(t, result.Session)
	assert.NotEmpty(t, result.Session.AccessToken)
	assert.Equal(t, uint(1), result.Session.UserID)
	assert.Nil(t, result.Challenge)
	f.otpRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestAuthService_Login_UntrustedDeviceGetsChallenge(t *testing.T) {
	// Arrange
	f := createTestAuthService(t)
	f.userRepo.On("GetByEmail", "user@example.com").Return(testUser(t, "correct-password"), nil)
	f.deviceRepo.On("GetByFingerprint", uint(1), "fp-strict-abc").Return(nil, apperrors.ErrNotFound)
	f.deviceRepo.On("GetByRelaxedFingerprint", uint(1), "fp-relaxed-abc").Return(nil, apperrors.ErrNotFound)
	f.otpRepo.On("Create", mock.AnythingOfType("*entity.OTPRecord")).Return(nil)

	// Act
	result, err := f.service.Login(context.Background(), "user@example.com", "correct-password", testSignals, "")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.OTPRequired)
	assert.Nil(t, result.Session)
	require.NotNil(t, result.Challenge)
	assert.Equal(t, entity.OTPPurposeLogin, result.Challenge.Purpose)
	f.otpRepo.AssertExpectations(t)
}

// ============================================================================
// VerifyLogin
// ============================================================================

func TestAuthService_VerifyLogin_Success(t *testing.T) {
	// Arrange
	f := createTestAuthService(t)
	f.userRepo.On("GetByEmail", "user@example.com").Return(testUser(t, "correct-password"), nil)
	f.userRepo.On("MarkEmailVerified", uint(1)).Return(nil)

	record := activeOTPRecord(f.otpService, "04821193")
	f.otpRepo.On("GetLatestByEmail", "user@example.com", entity.OTPPurposeLogin).Return(record, nil)
	f.otpRepo.On("MarkUsed", record.ID, "203.0.113.7", mock.AnythingOfType("time.Time")).Return(true, nil)
	f.eventRepo.On("Create", mock.AnythingOfType("*entity.VerificationEvent")).Return(nil)
	f.deviceRepo.On("Upsert", mock.AnythingOfType("*entity.TrustedDevice")).Return(nil)

	// Act
	session, err := f.service.VerifyLogin(context.Background(), "user@example.com", "04821193", testSignals, "203.0.113.7")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.NotEmpty(t, session.AccessToken)
	f.deviceRepo.AssertCalled(t, "Upsert", mock.AnythingOfType("*entity.TrustedDevice"))
	f.userRepo.AssertCalled(t, "MarkEmailVerified", uint(1))
}

func TestAuthService_VerifyLogin_WrongCode(t *testing.T) {
	// Arrange
	f := createTestAuthService(t)
	f.userRepo.On("GetByEmail", "user@example.com").Return(testUser(t, "correct-password"), nil)

	record := activeOTPRecord(f.otpService, "04821193")
	f.otpRepo.On("GetLatestByEmail", "user@example.com", entity.OTPPurposeLogin).Return(record, nil)
	f.otpRepo.On("IncrementAttempts", record.ID).Return(1, nil)
	f.eventRepo.On("Create", mock.AnythingOfType("*entity.VerificationEvent")).Return(nil)

	// Act
	session, err := f.service.VerifyLogin(context.Background(), "user@example.com", "11111111", testSignals, "")

	// Assert
	assert.Nil(t, session)
	assert.ErrorIs(t, err, ErrOTPInvalidCode)
	f.deviceRepo.AssertNotCalled(t, "Upsert", mock.Anything)
	f.userRepo.AssertNotCalled(t, "MarkEmailVerified", mock.Anything)
}

func TestAuthService_VerifyLogin_DeviceRegistrationFailureIsNonFatal(t *testing.T) {
	// Arrange
	f := createTestAuthService(t)
	f.userRepo.On("GetByEmail", "user@example.com").Return(testUser(t, "correct-password"), nil)
	f.userRepo.On("MarkEmailVerified", uint(1)).Return(nil)

	record := activeOTPRecord(f.otpService, "04821193")
	f.otpRepo.On("GetLatestByEmail", "user@example.com", entity.OTPPurposeLogin).Return(record, nil)
	f.otpRepo.On("MarkUsed", record.ID, "", mock.AnythingOfType("time.Time")).Return(true, nil)
	f.eventRepo.On("Create", mock.AnythingOfType("*entity.VerificationEvent")).Return(nil)
	f.deviceRepo.On("Upsert", mock.AnythingOfType("*entity.TrustedDevice")).Return(assert.AnError)

	// Act
	session, err := f.service.VerifyLogin(context.Background(), "user@example.com", "04821193", testSignals, "")

	// Assert
	require.NoError(t, err, "a failed trust registration must not void the verification")
	assert.NotNil(t, session)
}

// ============================================================================
// Password reset
// ============================================================================

func TestAuthService_RequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	// Arrange
	f := createTestAuthService(t)
	f.userRepo.On("GetByEmail", "nobody@example.com").Return(nil, apperrors.ErrNotFound)

	// Act
	challenge, err := f.service.RequestPasswordReset(context.Background(), "nobody@example.com")

	// Assert
	require.NoError(t, err, "unknown emails must not be distinguishable from known ones")
	assert.Nil(t, challenge)
	f.otpRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestAuthService_ConfirmPasswordReset_Success(t *testing.T) {
	// Arrange
	f := createTestAuthService(t)
	f.userRepo.On("GetByEmail", "user@example.com").Return(testUser(t, "old-password"), nil)
	f.userRepo.On("UpdatePassword", uint(1), "new-password-123").Return(nil)

	record := activeOTPRecord(f.otpService, "04821193")
	record.Purpose = entity.OTPPurposePasswordReset
	f.otpRepo.On("GetLatestByEmail", "user@example.com", entity.OTPPurposePasswordReset).Return(record, nil)
	f.otpRepo.On("MarkUsed", record.ID, "", mock.AnythingOfType("time.Time")).Return(true, nil)
	f.eventRepo.On("Create", mock.AnythingOfType("*entity.VerificationEvent")).Return(nil)

	// Act
	err := f.service.ConfirmPasswordReset(context.Background(), "user@example.com", "04821193", "new-password-123", "")

	// Assert
	require.NoError(t, err)
	f.userRepo.AssertCalled(t, "UpdatePassword", uint(1), "new-password-123")
}

func TestAuthService_ConfirmPasswordReset_ShortPassword(t *testing.T) {
	// Arrange
	f := createTestAuthService(t)

	// Act
	err := f.service.ConfirmPasswordReset(context.Background(), "user@example.com", "04821193", "short", "")

	// Assert
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	f.userRepo.AssertNotCalled(t, "GetByEmail", mock.Anything)
}

func TestAuthService_ConfirmPasswordReset_LoginCodeCannotConfirmReset(t *testing.T) {
	// Arrange
	f := createTestAuthService(t)
	f.userRepo.On("GetByEmail", "user@example.com").Return(testUser(t, "old-password"), nil)

	// A login challenge exists, but no password_reset one. The lookup is
	// purpose-scoped, so the reset flow sees nothing.
	f.otpRepo.On("GetLatestByEmail", "user@example.com", entity.OTPPurposePasswordReset).Return(nil, apperrors.ErrNotFound)
	f.eventRepo.On("Create", mock.AnythingOfType("*entity.VerificationEvent")).Return(nil)

	// Act
	err := f.service.ConfirmPasswordReset(context.Background(), "user@example.com", "04821193", "new-password-123", "")

	// Assert
	assert.ErrorIs(t, err, ErrOTPNotFound)
	f.userRepo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything)
}
