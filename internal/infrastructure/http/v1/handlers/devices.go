package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"varejo/internal/domain/auth"
	"varejo/internal/infrastructure/http/v1/dto"
)

// DeviceHandler serves device enrollment and token issuance.
type DeviceHandler struct {
	BaseHandler
	svc *auth.Service
}

// NewDeviceHandler creates the device handler.
func NewDeviceHandler(svc *auth.Service) *DeviceHandler {
	return &DeviceHandler{svc: svc}
}

// Register enrolls a new device.
// POST /api/v1/devices/register
func (h *DeviceHandler) Register(c *gin.Context) {
	var req dto.RegisterDeviceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	device, err := h.svc.Register(c.Request.Context(), req.DeviceID, req.Name, req.Secret)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.RegisterDeviceResponse{
		DeviceID:  device.DeviceID,
		Name:      device.Name,
		CreatedAt: device.CreatedAt,
	})
}

// Token exchanges the device secret for a sync token.
// POST /api/v1/devices/token
func (h *DeviceHandler) Token(c *gin.Context) {
	var req dto.TokenRequest
	if !h.BindJSON(c, &req) {
		return
	}

	token, err := h.svc.IssueToken(c.Request.Context(), req.DeviceID, req.Secret)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TokenResponse{Token: token})
}
