package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"varejo/internal/core/apperror"
	appctx "varejo/internal/core/context"
	"varejo/internal/core/syncwire"
	"varejo/internal/domain/syncsvc"
)

// SyncHandler serves the push/pull synchronization endpoints.
// The device identity always comes from the token, never from the body.
type SyncHandler struct {
	BaseHandler
	svc *syncsvc.Service
}

// NewSyncHandler creates the sync handler.
func NewSyncHandler(svc *syncsvc.Service) *SyncHandler {
	return &SyncHandler{svc: svc}
}

// Push applies a batch of queued operations.
// POST /api/v1/sync/push
func (h *SyncHandler) Push(c *gin.Context) {
	device := appctx.GetDevice(c.Request.Context())
	if device == nil {
		h.Error(c, apperror.NewUnauthorized("no device in context"))
		return
	}

	var req syncwire.PushRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.DeviceID != "" && req.DeviceID != device.DeviceID {
		h.Error(c, apperror.NewForbidden("device id does not match token"))
		return
	}

	resp, err := h.svc.Push(c.Request.Context(), device.DeviceID, req.Operations)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Pull returns one page of the change feed.
// GET /api/v1/sync/pull?cursor=<opaque>&deviceId=<id>
func (h *SyncHandler) Pull(c *gin.Context) {
	device := appctx.GetDevice(c.Request.Context())
	if device == nil {
		h.Error(c, apperror.NewUnauthorized("no device in context"))
		return
	}

	// deviceId is optional (the token is authoritative) but must match it
	// when present, same as the push body field.
	if q := c.Query("deviceId"); q != "" && q != device.DeviceID {
		h.Error(c, apperror.NewForbidden("device id does not match token"))
		return
	}

	resp, err := h.svc.Pull(c.Request.Context(), device.DeviceID, c.Query("cursor"))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
