package syncsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"varejo/internal/core/apperror"
	"varejo/internal/core/entity"
	"varejo/internal/core/id"
	"varejo/internal/core/syncwire"
	"varejo/internal/core/tx"
	"varejo/pkg/logger"
)

// DefaultPullLimit is the page size of the change feed.
const DefaultPullLimit = 200

// Service applies pushed operations and serves pulls.
type Service struct {
	repo      Repository
	txm       tx.Manager
	pullLimit int
}

// NewService creates the sync service.
func NewService(repo Repository, txm tx.Manager) *Service {
	return &Service{repo: repo, txm: txm, pullLimit: DefaultPullLimit}
}

// Push applies a batch of operations from one device.
//
// Each operation is applied in its own transaction so one rejected operation
// does not poison the rest of the batch. A rejection is terminal for that
// operation id; an infrastructure failure aborts the whole call instead, so
// the device retries the remainder on its next cycle (already-accepted ids
// are deduplicated by operation id).
func (s *Service) Push(ctx context.Context, deviceID string, ops []syncwire.Operation) (*syncwire.PushResponse, error) {
	resp := &syncwire.PushResponse{
		Accepted: make([]string, 0, len(ops)),
		Rejected: make([]syncwire.RejectedOperation, 0),
	}

	for _, op := range ops {
		if reason := validateOperation(op); reason != "" {
			resp.Rejected = append(resp.Rejected, syncwire.RejectedOperation{
				OperationID: op.OperationID,
				Reason:      reason,
			})
			continue
		}

		if err := s.applyOperation(ctx, deviceID, op); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeValidation {
				resp.Rejected = append(resp.Rejected, syncwire.RejectedOperation{
					OperationID: op.OperationID,
					Reason:      appErr.Message,
				})
				continue
			}
			return nil, fmt.Errorf("apply operation %s: %w", op.OperationID, err)
		}
		resp.Accepted = append(resp.Accepted, op.OperationID)
	}

	logger.Info(ctx, "push applied",
		"device_id", deviceID,
		"accepted", len(resp.Accepted),
		"rejected", len(resp.Rejected),
	)
	return resp, nil
}

// validateOperation returns a rejection reason, or "" when the operation is
// acceptable. Rejections are data problems: retrying the same payload can
// never succeed.
func validateOperation(op syncwire.Operation) string {
	if op.OperationID == "" {
		return "missing operation id"
	}
	if !op.Action.Valid() {
		return fmt.Sprintf("unknown action %q", op.Action)
	}
	def, ok := syncwire.Lookup(op.EntityType)
	if !ok {
		return fmt.Sprintf("unknown entity type %q", op.EntityType)
	}
	if !def.Writable {
		return fmt.Sprintf("entity type %q is read-only for devices", op.EntityType)
	}
	return ""
}

func (s *Service) applyOperation(ctx context.Context, deviceID string, op syncwire.Operation) error {
	payload, entityID, err := decodePayload(op)
	if err != nil {
		return err
	}

	// Confirmed sales never arrive by push: coupon assignment and ledger
	// effects must run in the server-side confirmation transaction.
	if op.EntityType == "sale" {
		if status, ok := payload["status"].(string); ok && status == string(entity.SaleStatusConfirmed) {
			return apperror.NewValidation("sales are confirmed via the confirmation endpoint, not by push")
		}
		if v, ok := payload["couponNumber"]; ok && v != nil {
			return apperror.NewValidation("coupon numbers are assigned by the server and cannot be pushed")
		}
	}

	table, _ := syncwire.TableFor(op.EntityType)

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		fresh, err := s.repo.TryRecordOperation(ctx, op.OperationID, deviceID)
		if err != nil {
			return fmt.Errorf("record operation: %w", err)
		}
		if !fresh {
			// Duplicate delivery of an already-applied operation.
			return nil
		}

		// A sale the server already confirmed (or cancelled) is final for
		// devices. A device replaying the stale draft would otherwise
		// silently revert the confirmation.
		if op.EntityType == "sale" {
			status, exists, err := s.repo.SaleStatus(ctx, entityID)
			if err != nil {
				return fmt.Errorf("load sale status: %w", err)
			}
			if exists && status != entity.SaleStatusDraft {
				return apperror.NewValidation(fmt.Sprintf("sale is already %s; only drafts can be rewritten by devices", status))
			}
		}

		switch op.Action {
		case syncwire.ActionCreate, syncwire.ActionUpdate:
			if err := s.repo.UpsertEntity(ctx, table, payload); err != nil {
				return fmt.Errorf("upsert %s: %w", op.EntityType, err)
			}
		case syncwire.ActionDelete:
			if err := s.repo.DeleteEntity(ctx, table, entityID); err != nil {
				return fmt.Errorf("delete %s: %w", op.EntityType, err)
			}
		}

		return s.repo.AppendChange(ctx, deviceID, syncwire.Change{
			EntityType: op.EntityType,
			Action:     op.Action,
			Payload:    op.Payload,
		})
	})
}

func decodePayload(op syncwire.Operation) (map[string]any, string, error) {
	var payload map[string]any
	if err := json.Unmarshal(op.Payload, &payload); err != nil {
		return nil, "", apperror.NewValidation("operation payload is not a JSON object").WithCause(err)
	}
	rawID, ok := payload["id"].(string)
	if !ok || rawID == "" {
		return nil, "", apperror.NewValidation("operation payload is missing an id")
	}
	if _, err := id.Parse(rawID); err != nil {
		return nil, "", apperror.NewValidation("operation payload id is not a valid uuid").WithCause(err)
	}
	return payload, rawID, nil
}

// Pull returns one page of the change feed after the given cursor, excluding
// changes that originated from the requesting device.
func (s *Service) Pull(ctx context.Context, deviceID string, cursor string) (*syncwire.PullResponse, error) {
	after := int64(0)
	if cursor != "" {
		parsed, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil || parsed < 0 {
			return nil, apperror.NewValidation("invalid cursor")
		}
		after = parsed
	}

	// One extra row decides hasMore without a second query.
	rows, err := s.repo.ChangesAfter(ctx, after, deviceID, s.pullLimit+1)
	if err != nil {
		return nil, fmt.Errorf("read change feed: %w", err)
	}

	hasMore := false
	if len(rows) > s.pullLimit {
		hasMore = true
		rows = rows[:s.pullLimit]
	}

	next := cursor
	changes := make([]syncwire.Change, 0, len(rows))
	for _, row := range rows {
		changes = append(changes, row.Change)
		next = strconv.FormatInt(row.Seq, 10)
	}

	resp := &syncwire.PullResponse{
		Changes: changes,
		HasMore: hasMore,
	}
	if next != "" {
		resp.Cursor = &next
	}
	return resp, nil
}
