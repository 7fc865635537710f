package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	appctx "varejo/internal/core/context"
	"varejo/internal/core/entity"
	"varejo/internal/core/syncwire"
	"varejo/internal/domain/syncsvc"
	"varejo/internal/infrastructure/http/v1/middleware"
)

type stubSyncRepo struct{}

func (stubSyncRepo) TryRecordOperation(context.Context, string, string) (bool, error) {
	return true, nil
}

func (stubSyncRepo) UpsertEntity(context.Context, string, map[string]any) error { return nil }

func (stubSyncRepo) DeleteEntity(context.Context, string, string) error { return nil }

func (stubSyncRepo) SaleStatus(context.Context, string) (entity.SaleStatus, bool, error) {
	return "", false, nil
}

func (stubSyncRepo) AppendChange(context.Context, string, syncwire.Change) error { return nil }

func (stubSyncRepo) ChangesAfter(context.Context, int64, string, int) ([]syncsvc.ChangeRow, error) {
	return nil, nil
}

type passTx struct{}

func (passTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passTx) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// newSyncTestRouter wires the sync handler behind the error middleware with
// an authenticated device already in context.
func newSyncTestRouter(t *testing.T, deviceID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewSyncHandler(syncsvc.NewService(stubSyncRepo{}, passTx{}))

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(
			appctx.WithDevice(c.Request.Context(), &appctx.DeviceInfo{DeviceID: deviceID}))
	})
	r.POST("/api/v1/sync/push", h.Push)
	r.GET("/api/v1/sync/pull", h.Pull)
	return r
}

func TestSyncPull_DeviceIDMustMatchToken(t *testing.T) {
	r := newSyncTestRouter(t, "pos-01")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync/pull?deviceId=pos-02", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "does not match token")
}

func TestSyncPull_MatchingOrAbsentDeviceIDIsServed(t *testing.T) {
	r := newSyncTestRouter(t, "pos-01")

	for _, target := range []string{
		"/api/v1/sync/pull?deviceId=pos-01",
		"/api/v1/sync/pull?cursor=",
		"/api/v1/sync/pull",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, w.Code, target)
	}
}

func TestSyncPush_DeviceIDMustMatchToken(t *testing.T) {
	r := newSyncTestRouter(t, "pos-01")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/push",
		strings.NewReader(`{"deviceId":"pos-02","operations":[]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
