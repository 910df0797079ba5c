package persistence

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"fieldmonitor/internal/blob"
	"fieldmonitor/internal/log"
	"fieldmonitor/pkg/domain"
)

func newAdapter(t *testing.T) (*Adapter, blob.Store) {
	t.Helper()
	store := blob.NewMemory()
	return New(store, nil), store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t)
	in := []domain.BudgetLine{{ID: "b1", Category: "Travel", PlannedAmount: 1000, ActualAmount: 500, CADEquivalent: 11, CurrencyRate: 0.022}}
	if err := a.Save(ctx, domain.KeyBudget, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out := Load(ctx, a, domain.KeyBudget, []domain.BudgetLine(nil))
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch: %+v vs %+v", in, out)
	}
}

func TestLoadMissingReturnsFallback(t *testing.T) {
	a, _ := newAdapter(t)
	fallback := []domain.Activity{{ID: "seed"}}
	got := Load(context.Background(), a, domain.KeyActivities, fallback)
	if len(got) != 1 || got[0].ID != "seed" {
		t.Fatalf("expected fallback, got %+v", got)
	}
}

func TestLoadMalformedReturnsFallbackAndWarns(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	store := blob.NewMemory()
	a := New(store, log.New(log.Config{Writer: &buf}))
	if _, err := store.Put(ctx, domain.KeyCompliance, strings.NewReader("{not json"), blob.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	fallback := []domain.ComplianceItem{{ID: "c1"}}
	got := Load(ctx, a, domain.KeyCompliance, fallback)
	if !reflect.DeepEqual(got, fallback) {
		t.Fatalf("expected fallback, got %+v", got)
	}
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "key=compliance") {
		t.Fatalf("expected warning with key, got %q", buf.String())
	}
}

func TestLoadWrongShapeReturnsFallback(t *testing.T) {
	ctx := context.Background()
	a, store := newAdapter(t)
	if _, err := store.Put(ctx, domain.KeyGISMetrics, strings.NewReader(`{"id":"x"}`), blob.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got := Load(ctx, a, domain.KeyGISMetrics, []domain.GISMetric{})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty fallback, got %+v", got)
	}
}

type failingStore struct{ blob.Store }

func (failingStore) Get(context.Context, string) (blob.Info, io.ReadCloser, error) {
	return blob.Info{}, nil, errors.New("disk on fire")
}

func (failingStore) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.Info, error) {
	return blob.Info{}, errors.New("quota exceeded")
}

func TestBackendFailures(t *testing.T) {
	ctx := context.Background()
	a := New(failingStore{Store: blob.NewMemory()}, nil)
	got := Load(ctx, a, domain.KeyGISLayers, []domain.GISLayer{{ID: "l"}})
	if len(got) != 1 {
		t.Fatalf("expected fallback on read failure")
	}
	err := a.Save(ctx, domain.KeyGISLayers, got)
	if err == nil || !strings.Contains(err.Error(), "save gisLayers") {
		t.Fatalf("expected wrapped save error, got %v", err)
	}
}

func TestSaveOverwritesWholeValue(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t)
	if err := a.Save(ctx, domain.KeyGISLayers, []domain.GISLayer{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := a.Save(ctx, domain.KeyGISLayers, []domain.GISLayer{{ID: "c"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got := Load(ctx, a, domain.KeyGISLayers, []domain.GISLayer(nil))
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("expected full replacement, got %+v", got)
	}
}

func TestLoadNullReturnsFallback(t *testing.T) {
	ctx := context.Background()
	a, store := newAdapter(t)
	for _, raw := range []string{"null", " null\n"} {
		if _, err := store.Put(ctx, domain.KeyBeneficiaries, strings.NewReader(raw), blob.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
		fallback := []domain.Beneficiary{{ID: "seed"}}
		if got := Load(ctx, a, domain.KeyBeneficiaries, fallback); !reflect.DeepEqual(got, fallback) {
			t.Fatalf("%q: expected fallback, got %+v", raw, got)
		}
	}
}
