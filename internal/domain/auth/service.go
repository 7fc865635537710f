package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"varejo/internal/core/apperror"
	"varejo/pkg/logger"
)

// Device is an enrolled sync client (a POS terminal or phone).
type Device struct {
	DeviceID   string     `db:"device_id" json:"deviceId"`
	Name       string     `db:"name" json:"name"`
	SecretHash string     `db:"secret_hash" json:"-"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	LastSeenAt *time.Time `db:"last_seen_at" json:"lastSeenAt,omitempty"`
}

// Repository stores enrolled devices.
type Repository interface {
	CreateDevice(ctx context.Context, d *Device) error
	GetDevice(ctx context.Context, deviceID string) (*Device, error)
	TouchDevice(ctx context.Context, deviceID string, at time.Time) error
}

// Service enrolls devices and issues their sync tokens.
type Service struct {
	repo Repository
	jwt  *JWTService
}

// NewService creates the auth service.
func NewService(repo Repository, jwt *JWTService) *Service {
	return &Service{repo: repo, jwt: jwt}
}

// Register enrolls a device under a shared secret. The secret is stored as a
// bcrypt hash; the plaintext never touches storage.
func (s *Service) Register(ctx context.Context, deviceID, name, secret string) (*Device, error) {
	if deviceID == "" || secret == "" {
		return nil, apperror.NewValidation("device id and secret are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash secret: %w", err)
	}

	device := &Device{
		DeviceID:   deviceID,
		Name:       name,
		SecretHash: string(hash),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateDevice(ctx, device); err != nil {
		return nil, err
	}

	logger.Info(ctx, "device registered", "device_id", deviceID, "name", name)
	return device, nil
}

// IssueToken verifies the device secret and returns a signed sync token.
func (s *Service) IssueToken(ctx context.Context, deviceID, secret string) (string, error) {
	device, err := s.repo.GetDevice(ctx, deviceID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return "", apperror.NewUnauthorized("unknown device")
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(device.SecretHash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", apperror.NewUnauthorized("invalid device secret")
		}
		return "", fmt.Errorf("compare secret: %w", err)
	}

	if err := s.repo.TouchDevice(ctx, deviceID, time.Now().UTC()); err != nil {
		logger.Warn(ctx, "touch device failed", "device_id", deviceID, "error", err)
	}

	return s.jwt.GenerateToken(device.DeviceID, device.Name)
}
