// Package auth handles device enrollment and token issuance for the sync API.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"varejo/internal/core/apperror"
)

// JWTConfig holds token signing configuration.
type JWTConfig struct {
	Secret   []byte
	TokenTTL time.Duration
	Issuer   string
}

// DefaultJWTConfig returns sensible defaults.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:   []byte(secret),
		TokenTTL: 24 * time.Hour,
		Issuer:   "varejo",
	}
}

// DeviceClaims are the JWT claims of an authenticated device.
type DeviceClaims struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName,omitempty"`
	jwt.RegisteredClaims
}

// JWTService signs and validates device tokens.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a JWT service.
func NewJWTService(config JWTConfig) *JWTService {
	return &JWTService{config: config}
}

// GenerateToken issues a signed token for a device.
func (s *JWTService) GenerateToken(deviceID, deviceName string) (string, error) {
	now := time.Now().UTC()
	claims := DeviceClaims{
		DeviceID:   deviceID,
		DeviceName: deviceName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.config.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a device token.
func (s *JWTService) ValidateToken(tokenString string) (*DeviceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.config.Secret, nil
	})
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid token").WithCause(err)
	}

	claims, ok := token.Claims.(*DeviceClaims)
	if !ok || !token.Valid {
		return nil, apperror.NewUnauthorized("invalid token")
	}
	if claims.DeviceID == "" {
		return nil, apperror.NewUnauthorized("token has no device")
	}
	return claims, nil
}
