package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varejo/internal/core/syncwire"
	"varejo/internal/device/localdb"
)

func newTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	db, err := localdb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db.SQL())
}

func op(id string) syncwire.Operation {
	return syncwire.Operation{
		OperationID: id,
		EntityType:  "product",
		Action:      syncwire.ActionCreate,
		Payload:     json.RawMessage(fmt.Sprintf(`{"id":"%s"}`, id)),
	}
}

func TestOutbox_PendingPreservesEnqueueOrder(t *testing.T) {
	o := newTestOutbox(t)
	ctx := context.Background()

	for _, id := range []string{"op-1", "op-2", "op-3"} {
		require.NoError(t, o.Enqueue(ctx, op(id)))
	}

	ops, err := o.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, "op-1", ops[0].OperationID)
	assert.Equal(t, "op-2", ops[1].OperationID)
	assert.Equal(t, "op-3", ops[2].OperationID)
}

func TestOutbox_MarkSyncedRemovesFromPending(t *testing.T) {
	o := newTestOutbox(t)
	ctx := context.Background()

	require.NoError(t, o.Enqueue(ctx, op("op-1")))
	require.NoError(t, o.Enqueue(ctx, op("op-2")))

	require.NoError(t, o.MarkSynced(ctx, []string{"op-1"}))

	ops, err := o.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "op-2", ops[0].OperationID)

	n, err := o.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOutbox_MarkSyncedUnknownIDIsNoOp(t *testing.T) {
	o := newTestOutbox(t)
	ctx := context.Background()

	require.NoError(t, o.Enqueue(ctx, op("op-1")))
	require.NoError(t, o.MarkSynced(ctx, []string{"never-seen"}))

	n, err := o.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOutbox_MarkRejectedIsTerminal(t *testing.T) {
	o := newTestOutbox(t)
	ctx := context.Background()

	require.NoError(t, o.Enqueue(ctx, op("op-1")))
	require.NoError(t, o.MarkRejected(ctx, []syncwire.RejectedOperation{
		{OperationID: "op-1", Reason: "unknown entity type"},
	}))

	ops, err := o.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestOutbox_EnqueueRequiresOperationID(t *testing.T) {
	o := newTestOutbox(t)

	err := o.Enqueue(context.Background(), syncwire.Operation{
		EntityType: "product",
		Action:     syncwire.ActionCreate,
		Payload:    json.RawMessage(`{"id":"x"}`),
	})
	assert.Error(t, err)
}

func TestOutbox_EnqueueChangeGeneratesOperationID(t *testing.T) {
	o := newTestOutbox(t)
	ctx := context.Background()

	first, err := o.EnqueueChange(ctx, "product", syncwire.ActionCreate, json.RawMessage(`{"id":"p1"}`))
	require.NoError(t, err)
	second, err := o.EnqueueChange(ctx, "product", syncwire.ActionUpdate, json.RawMessage(`{"id":"p1","name":"x"}`))
	require.NoError(t, err)

	assert.NotEmpty(t, first.OperationID)
	assert.NotEqual(t, first.OperationID, second.OperationID)

	ops, err := o.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, ops, 2)
}

func TestOutbox_CursorRoundTrip(t *testing.T) {
	o := newTestOutbox(t)
	ctx := context.Background()

	cursor, err := o.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", cursor)

	require.NoError(t, o.SaveCursor(ctx, "42"))
	require.NoError(t, o.SaveCursor(ctx, "57"))

	cursor, err = o.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "57", cursor)
}
