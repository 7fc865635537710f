// Package dto defines HTTP request and response bodies.
package dto

import "time"

// RegisterDeviceRequest enrolls a new sync device.
type RegisterDeviceRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
	Name     string `json:"name"`
	Secret   string `json:"secret" binding:"required"`
}

// RegisterDeviceResponse confirms enrollment.
type RegisterDeviceResponse struct {
	DeviceID  string    `json:"deviceId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// TokenRequest exchanges the device secret for a sync token.
type TokenRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

// TokenResponse carries the signed token.
type TokenResponse struct {
	Token string `json:"token"`
}
