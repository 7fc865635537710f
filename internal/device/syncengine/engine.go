// Package syncengine drives the device's push/pull cycle against the server.
package syncengine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"varejo/internal/core/syncwire"
	"varejo/internal/device/localdb"
	"varejo/internal/device/outbox"
	"varejo/pkg/logger"
)

// pushBatchSize caps operations per push request.
const pushBatchSize = 100

// offlineStatus is the lastError value reported while the connectivity
// signal says the device is offline. Not an error: the queue is intact and
// the next cycle retries.
const offlineStatus = "Offline"

// OnlineFunc reports device connectivity. The engine checks it before each
// cycle and skips the network entirely while it returns false.
type OnlineFunc func() bool

// Remote is the server's sync API as seen from the device.
type Remote interface {
	Push(ctx context.Context, req syncwire.PushRequest) (*syncwire.PushResponse, error)
	Pull(ctx context.Context, cursor string) (*syncwire.PullResponse, error)
}

// Engine coordinates the sync cycle. Create one per device database; the
// single-flight guard lives on the instance, so independent databases can
// sync concurrently.
type Engine struct {
	deviceID string
	local    *localdb.DB
	queue    *outbox.Outbox
	remote   Remote
	online   OnlineFunc

	syncing atomic.Bool

	mu           sync.Mutex
	lastSyncAt   *time.Time
	lastError    string
	lastRejected []syncwire.RejectedOperation

	// auto sync lifecycle
	autoMu   sync.Mutex
	autoStop chan struct{}
	autoDone chan struct{}
}

// Option configures the engine.
type Option func(*Engine)

// WithOnlineFunc installs a connectivity signal. Without one the engine
// assumes it is online and lets the network call fail instead.
func WithOnlineFunc(fn OnlineFunc) Option {
	return func(e *Engine) { e.online = fn }
}

// New creates a sync engine.
func New(deviceID string, local *localdb.DB, queue *outbox.Outbox, remote Remote, opts ...Option) *Engine {
	e := &Engine{
		deviceID: deviceID,
		local:    local,
		queue:    queue,
		remote:   remote,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncAll runs one full cycle: push the outbox, then pull the change feed.
// Concurrent calls are single-flight: if a cycle is already running the call
// returns immediately without touching anything. While the connectivity
// signal reports offline the cycle is skipped and Status shows Offline.
func (e *Engine) SyncAll(ctx context.Context) error {
	if !e.syncing.CompareAndSwap(false, true) {
		logger.Debug(ctx, "sync already in progress, skipping")
		return nil
	}
	defer e.syncing.Store(false)

	if e.online != nil && !e.online() {
		logger.Debug(ctx, "device offline, skipping sync")
		e.mu.Lock()
		e.lastError = offlineStatus
		e.mu.Unlock()
		return nil
	}

	err := e.syncOnce(ctx)

	e.mu.Lock()
	if err != nil {
		e.lastError = err.Error()
	} else {
		now := time.Now().UTC()
		e.lastSyncAt = &now
		e.lastError = ""
	}
	e.mu.Unlock()

	return err
}

func (e *Engine) syncOnce(ctx context.Context) error {
	if err := e.PushOperations(ctx); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if err := e.PullChanges(ctx); err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	return nil
}

// PushOperations sends the queued operations in batches. Only ids the server
// reports accepted are marked synced; anything the server did not mention
// stays pending for the next cycle. Rejections are terminal and surface in
// Status instead of retrying forever.
func (e *Engine) PushOperations(ctx context.Context) error {
	for {
		ops, err := e.queue.Pending(ctx, pushBatchSize)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			return nil
		}

		resp, err := e.remote.Push(ctx, syncwire.PushRequest{
			DeviceID:   e.deviceID,
			Operations: ops,
		})
		if err != nil {
			return err
		}

		// A server that acknowledges nothing from a batch would leave the
		// same operations pending and spin this loop forever.
		if len(resp.Accepted)+len(resp.Rejected) == 0 {
			return fmt.Errorf("server acknowledged none of %d pushed operations", len(ops))
		}

		if err := e.queue.MarkSynced(ctx, resp.Accepted); err != nil {
			return err
		}
		if len(resp.Rejected) > 0 {
			if err := e.queue.MarkRejected(ctx, resp.Rejected); err != nil {
				return err
			}
			e.mu.Lock()
			e.lastRejected = append(e.lastRejected, resp.Rejected...)
			e.mu.Unlock()
			logger.Warn(ctx, "operations rejected by server",
				"count", len(resp.Rejected),
			)
		}

		if len(ops) < pushBatchSize {
			return nil
		}
	}
}

// PullChanges pages through the server's change feed, applying each page to
// the local replica before persisting its cursor. A crash between apply and
// save replays the page; applying is idempotent.
func (e *Engine) PullChanges(ctx context.Context) error {
	cursor, err := e.queue.LoadCursor(ctx)
	if err != nil {
		return err
	}

	for {
		resp, err := e.remote.Pull(ctx, cursor)
		if err != nil {
			return err
		}

		for _, change := range resp.Changes {
			if err := e.local.ApplyChange(ctx, change); err != nil {
				return fmt.Errorf("apply %s change: %w", change.EntityType, err)
			}
		}

		if resp.Cursor != nil && *resp.Cursor != cursor {
			cursor = *resp.Cursor
			if err := e.queue.SaveCursor(ctx, cursor); err != nil {
				return err
			}
		}

		if !resp.HasMore {
			return nil
		}
	}
}

// StartAutoSync begins periodic syncing. Calling it again replaces the
// previous schedule. Stopping only cancels future ticks; a cycle already in
// flight runs to completion.
func (e *Engine) StartAutoSync(ctx context.Context, interval time.Duration) {
	e.autoMu.Lock()
	defer e.autoMu.Unlock()

	e.stopAutoLocked()

	stop := make(chan struct{})
	done := make(chan struct{})
	e.autoStop = stop
	e.autoDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := e.SyncAll(ctx); err != nil {
					logger.Warn(ctx, "auto sync failed", "error", err)
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopAutoSync cancels future scheduled syncs.
func (e *Engine) StopAutoSync() {
	e.autoMu.Lock()
	defer e.autoMu.Unlock()
	e.stopAutoLocked()
}

func (e *Engine) stopAutoLocked() {
	if e.autoStop != nil {
		close(e.autoStop)
		<-e.autoDone
		e.autoStop = nil
		e.autoDone = nil
	}
}

// Status returns a snapshot for the device UI.
func (e *Engine) Status(ctx context.Context) (*syncwire.SyncStatus, error) {
	pending, err := e.queue.CountPending(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	status := &syncwire.SyncStatus{
		PendingOperations: pending,
		IsSyncing:         e.syncing.Load(),
		LastError:         e.lastError,
	}
	if e.lastSyncAt != nil {
		at := *e.lastSyncAt
		status.LastSyncAt = &at
	}
	if len(e.lastRejected) > 0 {
		status.LastRejected = append([]syncwire.RejectedOperation(nil), e.lastRejected...)
	}
	return status, nil
}
