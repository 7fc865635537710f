package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"varejo/internal/core/apperror"
	appctx "varejo/internal/core/context"
	"varejo/internal/domain/auth"
)

// TokenValidator validates a device token.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.DeviceClaims, error)
}

// Auth validates the bearer token and puts the device into context.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := validator.ValidateToken(parts[1])
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token"))
			c.Abort()
			return
		}

		ctx := appctx.WithDevice(c.Request.Context(), &appctx.DeviceInfo{
			DeviceID: claims.DeviceID,
			Name:     claims.DeviceName,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Set("device_id", claims.DeviceID)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
