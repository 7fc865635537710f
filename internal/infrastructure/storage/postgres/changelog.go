package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/klauspost/compress/zstd"

	"varejo/internal/core/syncwire"
	"varejo/internal/domain/syncsvc"
)

// compressThreshold is the payload size above which changelog payloads are
// stored zstd-compressed. Catalog rows stay well below it; the flag mostly
// catches bulk product imports.
const compressThreshold = 4 * 1024

// changelogLockID keys the advisory lock that serializes feed appends.
const changelogLockID = int64(824001)

// Changelog persists the ordered change feed in sys_changelog.
type Changelog struct {
	src     QuerierSource
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewChangelog creates the changelog store.
func NewChangelog(src QuerierSource) (*Changelog, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Changelog{src: src, encoder: enc, decoder: dec}, nil
}

// AppendChange writes one feed entry tagged with its origin device.
//
// Pull cursors treat seq as a watermark: once a page has returned seq N, no
// row with seq < N may become visible later. A sequence alone cannot give
// that (a transaction holding a lower seq can commit after a higher one is
// already visible), so every append takes a transaction-scoped advisory
// lock first. Appends commit in seq order; the feed loses gaps, not rows.
func (c *Changelog) AppendChange(ctx context.Context, origin string, change syncwire.Change) error {
	payload, compressed := c.encodePayload(change.Payload)

	query, args, err := sq.Insert("sys_changelog").
		Columns("origin", "entity_type", "action", "payload", "compressed").
		Values(origin, change.EntityType, string(change.Action), payload, compressed).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build changelog insert: %w", err)
	}

	q := c.src.GetQuerier(ctx)
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, changelogLockID); err != nil {
		return fmt.Errorf("acquire changelog lock: %w", err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("append change: %w", err)
	}
	return nil
}

// RecordChange appends a server-originated change. Origin is empty so every
// device, the one that triggered the write included, pulls the entry.
func (c *Changelog) RecordChange(ctx context.Context, entityType string, action syncwire.Action, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal change payload: %w", err)
	}
	return c.AppendChange(ctx, "", syncwire.Change{
		EntityType: entityType,
		Action:     action,
		Payload:    raw,
	})
}

// ChangesAfter returns up to limit entries with seq > after, oldest first,
// skipping entries originated by excludeOrigin.
func (c *Changelog) ChangesAfter(ctx context.Context, after int64, excludeOrigin string, limit int) ([]syncsvc.ChangeRow, error) {
	query, args, err := sq.Select("seq", "origin", "entity_type", "action", "payload", "compressed").
		From("sys_changelog").
		Where(sq.Gt{"seq": after}).
		Where(sq.NotEq{"origin": excludeOrigin}).
		OrderBy("seq ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build changelog select: %w", err)
	}

	rows, err := c.src.GetQuerier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read change feed: %w", err)
	}
	defer rows.Close()

	var out []syncsvc.ChangeRow
	for rows.Next() {
		var (
			row        syncsvc.ChangeRow
			action     string
			payload    []byte
			compressed bool
		)
		if err := rows.Scan(&row.Seq, &row.Origin, &row.Change.EntityType, &action, &payload, &compressed); err != nil {
			return nil, fmt.Errorf("scan change row: %w", err)
		}
		raw, err := c.decodePayload(payload, compressed)
		if err != nil {
			return nil, fmt.Errorf("decode change payload seq %d: %w", row.Seq, err)
		}
		row.Change.Action = syncwire.Action(action)
		row.Change.Payload = raw
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change feed: %w", err)
	}
	return out, nil
}

func (c *Changelog) encodePayload(raw []byte) ([]byte, bool) {
	if len(raw) < compressThreshold {
		return raw, false
	}
	return c.encoder.EncodeAll(raw, nil), true
}

func (c *Changelog) decodePayload(stored []byte, compressed bool) (json.RawMessage, error) {
	if !compressed {
		return stored, nil
	}
	return c.decoder.DecodeAll(stored, nil)
}
