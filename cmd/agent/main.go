// Package main is the device agent: it keeps the local SQLite replica in
// sync with the server, pushing the outbox and pulling the change feed.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"varejo/internal/device/localdb"
	"varejo/internal/device/outbox"
	"varejo/internal/device/syncengine"
	"varejo/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	serverURL := mustEnv("SERVER_URL")
	deviceID := mustEnv("DEVICE_ID")
	deviceSecret := mustEnv("DEVICE_SECRET")
	dbPath := getEnv("DEVICE_DB", "varejo-device.db")
	interval := getEnvDuration("SYNC_INTERVAL", 30*time.Second)

	log.Infow("starting varejo agent", "device_id", deviceID, "db", dbPath)

	db, err := localdb.Open(dbPath)
	if err != nil {
		log.Fatalw("failed to open device database", "error", err)
	}
	defer db.Close()

	queue := outbox.New(db.SQL())
	remote := syncengine.NewHTTPRemote(serverURL, tokenProvider(serverURL, deviceID, deviceSecret))
	engine := syncengine.New(deviceID, db, queue, remote)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First cycle immediately; offline is fine, the ticker retries.
	if err := engine.SyncAll(ctx); err != nil {
		log.Warnw("initial sync failed", "error", err)
	}
	engine.StartAutoSync(ctx, interval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("stopping agent...")
	engine.StopAutoSync()
	log.Info("agent stopped")
}

// tokenProvider exchanges the device secret for a token, caching it until
// close to expiry.
func tokenProvider(serverURL, deviceID, secret string) syncengine.TokenFunc {
	var (
		token     string
		fetchedAt time.Time
	)
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context) (string, error) {
		// Tokens live 24h; refresh well before that.
		if token != "" && time.Since(fetchedAt) < 12*time.Hour {
			return token, nil
		}

		body, err := json.Marshal(map[string]string{
			"deviceId": deviceID,
			"secret":   secret,
		})
		if err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			serverURL+"/api/v1/devices/token", bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("request token: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return "", fmt.Errorf("token request failed: status %d: %s", resp.StatusCode, raw)
		}

		var out struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode token response: %w", err)
		}

		token = out.Token
		fetchedAt = time.Now()
		return token, nil
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
