package context

import (
	"context"
)

// DeviceInfo identifies the authenticated device of a sync request.
type DeviceInfo struct {
	DeviceID string
	Name     string
}

type deviceKey struct{}

// WithDevice stores device info in context.
func WithDevice(ctx context.Context, info *DeviceInfo) context.Context {
	return context.WithValue(ctx, deviceKey{}, info)
}

// GetDevice returns device info from context, or nil.
func GetDevice(ctx context.Context) *DeviceInfo {
	if info, ok := ctx.Value(deviceKey{}).(*DeviceInfo); ok {
		return info
	}
	return nil
}
