package syncsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varejo/internal/core/apperror"
	"varejo/internal/core/entity"
	"varejo/internal/core/id"
	"varejo/internal/core/syncwire"
)

type fakeRepo struct {
	applied   map[string]bool
	rows      map[string]map[string]map[string]any // table -> id -> payload
	feed      []ChangeRow
	nextSeq   int64
	upsertErr map[string]error // row id -> error to return from UpsertEntity
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		applied:   make(map[string]bool),
		rows:      make(map[string]map[string]map[string]any),
		upsertErr: make(map[string]error),
	}
}

func (r *fakeRepo) TryRecordOperation(_ context.Context, operationID, _ string) (bool, error) {
	if r.applied[operationID] {
		return false, nil
	}
	r.applied[operationID] = true
	return true, nil
}

func (r *fakeRepo) UpsertEntity(_ context.Context, table string, payload map[string]any) error {
	rowID := payload["id"].(string)
	if err := r.upsertErr[rowID]; err != nil {
		return err
	}
	if r.rows[table] == nil {
		r.rows[table] = make(map[string]map[string]any)
	}
	r.rows[table][rowID] = payload
	return nil
}

func (r *fakeRepo) SaleStatus(_ context.Context, saleID string) (entity.SaleStatus, bool, error) {
	row, ok := r.rows["doc_sales"][saleID]
	if !ok {
		return "", false, nil
	}
	status, _ := row["status"].(string)
	return entity.SaleStatus(status), true, nil
}

func (r *fakeRepo) DeleteEntity(_ context.Context, table string, entityID string) error {
	delete(r.rows[table], entityID)
	return nil
}

func (r *fakeRepo) AppendChange(_ context.Context, origin string, change syncwire.Change) error {
	r.nextSeq++
	r.feed = append(r.feed, ChangeRow{Seq: r.nextSeq, Origin: origin, Change: change})
	return nil
}

func (r *fakeRepo) ChangesAfter(_ context.Context, after int64, excludeOrigin string, limit int) ([]ChangeRow, error) {
	var out []ChangeRow
	for _, row := range r.feed {
		if row.Seq <= after || row.Origin == excludeOrigin {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughTx) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func op(entityType string, action syncwire.Action, payload map[string]any) syncwire.Operation {
	raw, _ := json.Marshal(payload)
	return syncwire.Operation{
		OperationID: id.NewString(),
		EntityType:  entityType,
		Action:      action,
		Payload:     raw,
	}
}

func TestPush_AppliesAndFeedsChanges(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, passthroughTx{})

	productID := id.NewString()
	customerOp := op("customer", syncwire.ActionCreate, map[string]any{"id": id.NewString(), "name": "Maria"})
	productOp := op("product", syncwire.ActionCreate, map[string]any{"id": productID, "name": "Coffee"})

	resp, err := svc.Push(context.Background(), "device-1", []syncwire.Operation{customerOp, productOp})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{customerOp.OperationID, productOp.OperationID}, resp.Accepted)
	assert.Empty(t, resp.Rejected)

	assert.Contains(t, repo.rows["cat_products"], productID)
	require.Len(t, repo.feed, 2)
	assert.Equal(t, "device-1", repo.feed[0].Origin)
}

func TestPush_DuplicateOperationAcceptedWithoutReapply(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, passthroughTx{})

	o := op("customer", syncwire.ActionCreate, map[string]any{"id": id.NewString(), "name": "Ana"})

	first, err := svc.Push(context.Background(), "device-1", []syncwire.Operation{o})
	require.NoError(t, err)
	second, err := svc.Push(context.Background(), "device-1", []syncwire.Operation{o})
	require.NoError(t, err)

	assert.Equal(t, first.Accepted, second.Accepted)
	// Applied exactly once: a single feed entry.
	assert.Len(t, repo.feed, 1)
}

func TestPush_Rejections(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, passthroughTx{})

	unknown := op("warehouse", syncwire.ActionCreate, map[string]any{"id": id.NewString()})
	readOnly := op("receivable", syncwire.ActionCreate, map[string]any{"id": id.NewString()})
	badAction := op("customer", syncwire.Action("MERGE"), map[string]any{"id": id.NewString()})
	confirmedSale := op("sale", syncwire.ActionUpdate, map[string]any{"id": id.NewString(), "status": "CONFIRMED"})
	noID := op("customer", syncwire.ActionCreate, map[string]any{"name": "sem id"})
	good := op("customer", syncwire.ActionCreate, map[string]any{"id": id.NewString(), "name": "João"})

	resp, err := svc.Push(context.Background(), "device-1", []syncwire.Operation{
		unknown, readOnly, badAction, confirmedSale, noID, good,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{good.OperationID}, resp.Accepted)
	require.Len(t, resp.Rejected, 5)

	reasons := make(map[string]string)
	for _, rej := range resp.Rejected {
		reasons[rej.OperationID] = rej.Reason
	}
	assert.Contains(t, reasons[unknown.OperationID], "unknown entity type")
	assert.Contains(t, reasons[readOnly.OperationID], "read-only")
	assert.Contains(t, reasons[badAction.OperationID], "unknown action")
	assert.Contains(t, reasons[confirmedSale.OperationID], "confirmation endpoint")
	assert.Contains(t, reasons[noID.OperationID], "missing an id")
}

func TestPush_SchemaFaultRejectsOnlyThatOperation(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, passthroughTx{})

	before := op("product", syncwire.ActionCreate, map[string]any{"id": id.NewString(), "name": "Coffee"})
	// A payload fault the storage layer classified: the same bytes fail on
	// every replay, so the operation must be rejected, not retried.
	badID := id.NewString()
	bad := op("product", syncwire.ActionCreate, map[string]any{"id": badID, "color": "red"})
	repo.upsertErr[badID] = apperror.NewValidation(
		`upsert into cat_products: column "color" of relation "cat_products" does not exist`)
	after := op("product", syncwire.ActionCreate, map[string]any{"id": id.NewString(), "name": "Tea"})

	resp, err := svc.Push(context.Background(), "device-1", []syncwire.Operation{before, bad, after})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, []string{before.OperationID, after.OperationID}, resp.Accepted)
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, bad.OperationID, resp.Rejected[0].OperationID)
	assert.Contains(t, resp.Rejected[0].Reason, "does not exist")
}

func TestPush_InfrastructureFailureAbortsBatch(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, passthroughTx{})

	brokenID := id.NewString()
	repo.upsertErr[brokenID] = apperror.NewDatabase(errors.New("connection refused"))
	broken := op("product", syncwire.ActionCreate, map[string]any{"id": brokenID, "name": "x"})

	// Transient failures abort the call so the device retries the batch;
	// nothing gets silently rejected.
	resp, err := svc.Push(context.Background(), "device-1", []syncwire.Operation{broken})
	require.Error(t, err)
	assert.Nil(t, resp)
}

func TestPush_StaleDraftCannotRevertConfirmedSale(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, passthroughTx{})

	saleID := id.NewString()
	repo.rows["doc_sales"] = map[string]map[string]any{
		saleID: {"id": saleID, "status": string(entity.SaleStatusConfirmed), "coupon_number": float64(42)},
	}

	// The device edited the sale before it learned about the confirmation
	// and now replays its draft.
	stale := op("sale", syncwire.ActionUpdate, map[string]any{
		"id": saleID, "status": string(entity.SaleStatusDraft), "totalAmount": "99.90",
	})

	resp, err := svc.Push(context.Background(), "device-1", []syncwire.Operation{stale})
	require.NoError(t, err)

	assert.Empty(t, resp.Accepted)
	require.Len(t, resp.Rejected, 1)
	assert.Contains(t, resp.Rejected[0].Reason, "only drafts")

	// The confirmed row is untouched.
	assert.Equal(t, string(entity.SaleStatusConfirmed), repo.rows["doc_sales"][saleID]["status"])
}

func TestPush_ConfirmedSaleCannotBeDeleted(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, passthroughTx{})

	saleID := id.NewString()
	repo.rows["doc_sales"] = map[string]map[string]any{
		saleID: {"id": saleID, "status": string(entity.SaleStatusConfirmed)},
	}

	del := op("sale", syncwire.ActionDelete, map[string]any{"id": saleID})

	resp, err := svc.Push(context.Background(), "device-1", []syncwire.Operation{del})
	require.NoError(t, err)

	assert.Empty(t, resp.Accepted)
	require.Len(t, resp.Rejected, 1)
	assert.Contains(t, repo.rows["doc_sales"], saleID)
}

func TestPush_CouponNumberNeverAcceptedFromDevices(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, passthroughTx{})

	forged := op("sale", syncwire.ActionCreate, map[string]any{
		"id": id.NewString(), "status": string(entity.SaleStatusDraft), "couponNumber": float64(777),
	})

	resp, err := svc.Push(context.Background(), "device-1", []syncwire.Operation{forged})
	require.NoError(t, err)

	assert.Empty(t, resp.Accepted)
	require.Len(t, resp.Rejected, 1)
	assert.Contains(t, resp.Rejected[0].Reason, "coupon numbers are assigned by the server")
}

func TestPush_DeleteRemovesRow(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, passthroughTx{})

	rowID := id.NewString()
	create := op("supplier", syncwire.ActionCreate, map[string]any{"id": rowID, "name": "Fornecedor"})
	del := op("supplier", syncwire.ActionDelete, map[string]any{"id": rowID})

	_, err := svc.Push(context.Background(), "device-1", []syncwire.Operation{create})
	require.NoError(t, err)
	assert.Contains(t, repo.rows["cat_suppliers"], rowID)

	_, err = svc.Push(context.Background(), "device-1", []syncwire.Operation{del})
	require.NoError(t, err)
	assert.NotContains(t, repo.rows["cat_suppliers"], rowID)
}

func TestPull_ExcludesOwnChangesAndPaginates(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, passthroughTx{})
	svc.pullLimit = 2

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.AppendChange(context.Background(), "device-2", syncwire.Change{
			EntityType: "customer",
			Action:     syncwire.ActionCreate,
			Payload:    json.RawMessage(fmt.Sprintf(`{"id":%q}`, id.NewString())),
		}))
	}
	// A change from the requesting device itself: never served back.
	require.NoError(t, repo.AppendChange(context.Background(), "device-1", syncwire.Change{
		EntityType: "customer",
		Action:     syncwire.ActionCreate,
		Payload:    json.RawMessage(`{"id":"x"}`),
	}))

	page1, err := svc.Pull(context.Background(), "device-1", "")
	require.NoError(t, err)
	assert.Len(t, page1.Changes, 2)
	assert.True(t, page1.HasMore)
	require.NotNil(t, page1.Cursor)

	page2, err := svc.Pull(context.Background(), "device-1", *page1.Cursor)
	require.NoError(t, err)
	assert.Len(t, page2.Changes, 1)
	assert.False(t, page2.HasMore)

	// Replaying the same cursor yields the same page (resumable).
	replay, err := svc.Pull(context.Background(), "device-1", *page1.Cursor)
	require.NoError(t, err)
	assert.Equal(t, page2.Changes, replay.Changes)

	// Fully caught up: empty page, cursor unchanged.
	page3, err := svc.Pull(context.Background(), "device-1", *page2.Cursor)
	require.NoError(t, err)
	assert.Empty(t, page3.Changes)
	assert.False(t, page3.HasMore)
	require.NotNil(t, page3.Cursor)
	assert.Equal(t, *page2.Cursor, *page3.Cursor)
}

func TestPull_InvalidCursor(t *testing.T) {
	svc := NewService(newFakeRepo(), passthroughTx{})

	_, err := svc.Pull(context.Background(), "device-1", "not-a-number")
	assert.Error(t, err)
}
