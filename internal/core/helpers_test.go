package core_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"fieldmonitor/internal/blob"
	"fieldmonitor/internal/core"
	"fieldmonitor/internal/persistence"
)

var errPutRefused = errors.New("disk full")

// flakyStore wraps a byte store and can be told to refuse writes.
type flakyStore struct {
	blob.Store
	failPuts atomic.Bool
	puts     atomic.Int64
}

func (f *flakyStore) Put(ctx context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	f.puts.Add(1)
	if f.failPuts.Load() {
		return blob.Info{}, errPutRefused
	}
	return f.Store.Put(ctx, key, r, opts)
}

func newFlaky() *flakyStore {
	return &flakyStore{Store: blob.NewMemory()}
}

func newTestStore(t *testing.T, bs blob.Store, defaults core.Snapshot, opts ...core.StoreOption) *core.Store {
	t.Helper()
	return core.NewStore(context.Background(), persistence.New(bs, nil), defaults, opts...)
}

// slowStore delays every write so concurrent mutations overlap.
type slowStore struct {
	blob.Store
	delay time.Duration
}

func (s slowStore) Put(ctx context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	time.Sleep(s.delay)
	return s.Store.Put(ctx, key, r, opts)
}
