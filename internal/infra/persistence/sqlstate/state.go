// Package sqlstate implements core.Store over a single `state` table holding
// one row per key. SQL backends share it and differ only in bind style.
package sqlstate

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"fieldmonitor/internal/blob/core"
)

// Bind rewrites `?` placeholders for the target dialect.
type Bind func(query string) string

// QuestionBind leaves `?` placeholders untouched (SQLite).
func QuestionBind(query string) string { return query }

// DollarBind rewrites `?` placeholders to `$n` (Postgres).
func DollarBind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Table is a core.Store backed by the `state` table.
type Table struct {
	db     *sql.DB
	driver core.Driver
	bind   Bind
	now    func() time.Time
}

// New wraps an open database whose schema is already migrated.
func New(db *sql.DB, driver core.Driver, bind Bind) *Table {
	if bind == nil {
		bind = QuestionBind
	}
	return &Table{db: db, driver: driver, bind: bind, now: func() time.Time { return time.Now().UTC() }}
}

// Driver returns the configured backend driver.
func (t *Table) Driver() core.Driver { return t.driver }

// Close closes the database handle.
func (t *Table) Close() error { return t.db.Close() }

// Put upserts the payload under key.
func (t *Table) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if key == "" {
		return core.Info{}, fmt.Errorf("%s store: empty key", t.driver)
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, fmt.Errorf("%s store: read %s: %w", t.driver, key, err)
	}
	meta, err := json.Marshal(opts.Metadata)
	if err != nil {
		return core.Info{}, err
	}
	sum := sha256.Sum256(payload)
	info := core.Info{
		Key:          key,
		Size:         int64(len(payload)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		Metadata:     opts.Metadata,
		LastModified: t.now(),
	}
	q := t.bind(`INSERT INTO state(bucket, payload, content_type, etag, metadata, updated_at)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(bucket) DO UPDATE SET
	payload = excluded.payload,
	content_type = excluded.content_type,
	etag = excluded.etag,
	metadata = excluded.metadata,
	updated_at = excluded.updated_at`)
	if _, err := t.db.ExecContext(ctx, q, key, payload, info.ContentType, info.ETag, string(meta), info.LastModified.UnixNano()); err != nil {
		return core.Info{}, fmt.Errorf("upsert %s: %w", key, err)
	}
	return info, nil
}

// Get returns the stored payload.
func (t *Table) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	info, payload, err := t.fetch(ctx, key, true)
	if err != nil {
		return core.Info{}, nil, err
	}
	return info, io.NopCloser(bytes.NewReader(payload)), nil
}

// Head returns metadata only.
func (t *Table) Head(ctx context.Context, key string) (core.Info, error) {
	info, _, err := t.fetch(ctx, key, false)
	return info, err
}

func (t *Table) fetch(ctx context.Context, key string, withPayload bool) (core.Info, []byte, error) {
	cols := "length(payload), content_type, etag, metadata, updated_at"
	if withPayload {
		cols += ", payload"
	}
	row := t.db.QueryRowContext(ctx, t.bind("SELECT "+cols+" FROM state WHERE bucket = ?"), key)
	var (
		info    = core.Info{Key: key}
		meta    string
		updated int64
		payload []byte
	)
	dest := []any{&info.Size, &info.ContentType, &info.ETag, &meta, &updated}
	if withPayload {
		dest = append(dest, &payload)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Info{}, nil, fmt.Errorf("%s store %s: %w", t.driver, key, core.ErrNotFound)
		}
		return core.Info{}, nil, fmt.Errorf("select %s: %w", key, err)
	}
	if err := decodeMeta(meta, &info); err != nil {
		return core.Info{}, nil, err
	}
	info.LastModified = time.Unix(0, updated).UTC()
	return info, payload, nil
}

// Delete removes the row, reporting whether it existed.
func (t *Table) Delete(ctx context.Context, key string) (bool, error) {
	res, err := t.db.ExecContext(ctx, t.bind("DELETE FROM state WHERE bucket = ?"), key)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns rows whose key starts with prefix, ordered by key.
func (t *Table) List(ctx context.Context, prefix string) ([]core.Info, error) {
	rows, err := t.db.QueryContext(ctx, "SELECT bucket, length(payload), content_type, etag, metadata, updated_at FROM state ORDER BY bucket")
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []core.Info
	for rows.Next() {
		var (
			info    core.Info
			meta    string
			updated int64
		)
		if err := rows.Scan(&info.Key, &info.Size, &info.ContentType, &info.ETag, &meta, &updated); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		if !strings.HasPrefix(info.Key, prefix) {
			continue
		}
		if err := decodeMeta(meta, &info); err != nil {
			return nil, err
		}
		info.LastModified = time.Unix(0, updated).UTC()
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state: %w", err)
	}
	return out, nil
}

func decodeMeta(raw string, info *core.Info) error {
	if raw == "" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &info.Metadata); err != nil {
		return fmt.Errorf("decode metadata for %s: %w", info.Key, err)
	}
	return nil
}
