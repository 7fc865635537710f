package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varejo/pkg/logger"
)

func TestLogger_SkipsHealthChecksAndLevelsByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	logPath := filepath.Join(t.TempDir(), "http.log")
	log, err := logger.New(logger.Config{Level: "info", OutputPaths: []string{logPath}})
	require.NoError(t, err)

	r := gin.New()
	r.Use(Logger(log))
	r.GET("/health/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/sync/pull", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, target := range []string{"/health/live", "/api/v1/sync/pull", "/api/v1/broken"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	}
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(logPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2, "health checks must not be logged")

	var pullLine, brokenLine string
	for _, line := range lines {
		switch {
		case strings.Contains(line, "/api/v1/sync/pull"):
			pullLine = line
		case strings.Contains(line, "/api/v1/broken"):
			brokenLine = line
		}
	}
	require.NotEmpty(t, pullLine)
	require.NotEmpty(t, brokenLine)

	assert.Contains(t, pullLine, `"level":"info"`)
	assert.Contains(t, pullLine, `"bytes_out"`)
	assert.Contains(t, brokenLine, `"level":"error"`)
}
