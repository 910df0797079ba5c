// Package persistence maps entity collections onto the durable key/value
// store. Loads never fail: a missing, unreadable or malformed value falls back
// to the caller's default with a warning. Saves always write the whole value.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"fieldmonitor/internal/blob"
	"fieldmonitor/internal/log"
)

const contentType = "application/json"

// Adapter reads and writes JSON values under string keys.
type Adapter struct {
	store  blob.Store
	logger *log.Logger
}

// New returns an adapter over store. A nil logger discards warnings.
func New(store blob.Store, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.Discard()
	}
	return &Adapter{store: store, logger: logger.WithComponent(log.ComponentPersistence)}
}

// Load decodes the value stored under key into a T. Any fault returns fallback.
func Load[T any](ctx context.Context, a *Adapter, key string, fallback T) T {
	raw, err := a.read(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			a.logger.DebugContext(ctx, "no stored value, using default", log.FieldKey, key)
		} else {
			a.logger.WarnContext(ctx, "read failed, using default", log.FieldKey, key, log.FieldError, err)
		}
		return fallback
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		a.logger.WarnContext(ctx, "stored value is null, using default", log.FieldKey, key)
		return fallback
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		a.logger.WarnContext(ctx, "malformed stored value, using default", log.FieldKey, key, log.FieldError, err)
		return fallback
	}
	return out
}

func (a *Adapter) read(ctx context.Context, key string) ([]byte, error) {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// Save serializes value and replaces whatever is stored under key.
func (a *Adapter) Save(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if _, err := a.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
