package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fieldmonitor/internal/blob/core"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.now = func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }
	return s
}

func put(t *testing.T, s *Store, key, body string, opts core.PutOptions) core.Info {
	t.Helper()
	info, err := s.Put(context.Background(), key, strings.NewReader(body), opts)
	if err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
	return info
}

func payload(t *testing.T, s *Store, key string) string {
	t.Helper()
	_, rc, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return string(b)
}

func TestPutWritesPayloadAndSidecar(t *testing.T) {
	s := openStore(t)
	info := put(t, s, "activities", `[{"id":"a1"}]`, core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"collection": "activities"},
	})
	if info.Size != 13 || info.ETag == "" || !info.LastModified.Equal(s.now()) {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := os.Stat(filepath.Join(s.root, ".meta", "activities.json")); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}

	head, err := s.Head(context.Background(), "activities")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.ETag != info.ETag || head.ContentType != "application/json" || head.Metadata["collection"] != "activities" {
		t.Fatalf("head mismatch %+v", head)
	}
	if got := payload(t, s, "activities"); got != `[{"id":"a1"}]` {
		t.Fatalf("payload %q", got)
	}
}

func TestPutReplacesWithoutLeftovers(t *testing.T) {
	s := openStore(t)
	first := put(t, s, "budget", "old", core.PutOptions{})
	second := put(t, s, "budget", "newer", core.PutOptions{})
	if first.ETag == second.ETag || second.Size != 5 {
		t.Fatalf("expected replaced info, got %+v", second)
	}
	if got := payload(t, s, "budget"); got != "newer" {
		t.Fatalf("payload %q", got)
	}
	for _, dir := range []string{s.root, filepath.Join(s.root, ".meta")} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("readdir %s: %v", dir, err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), tempPrefix) {
				t.Fatalf("temp file left behind in %s: %s", dir, e.Name())
			}
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestFailedPutKeepsPreviousValue(t *testing.T) {
	s := openStore(t)
	put(t, s, "compliance", "keep", core.PutOptions{})
	if _, err := s.Put(context.Background(), "compliance", failingReader{}, core.PutOptions{}); err == nil {
		t.Fatal("expected write error")
	}
	if got := payload(t, s, "compliance"); got != "keep" {
		t.Fatalf("previous payload lost, got %q", got)
	}
}

func TestDeleteAndMissingKeys(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	put(t, s, "gisMetrics", "[]", core.PutOptions{})

	removed, err := s.Delete(ctx, "gisMetrics")
	if err != nil || !removed {
		t.Fatalf("delete: %v %v", removed, err)
	}
	if _, err := os.Stat(filepath.Join(s.root, ".meta", "gisMetrics.json")); !os.IsNotExist(err) {
		t.Fatalf("sidecar should be gone, stat err %v", err)
	}
	removed, err = s.Delete(ctx, "gisMetrics")
	if err != nil || removed {
		t.Fatalf("second delete: %v %v", removed, err)
	}
	if _, _, err := s.Get(ctx, "gisMetrics"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get missing: %v", err)
	}
	if _, err := s.Head(ctx, "never"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head missing: %v", err)
	}
}

func TestListSkipsBookkeepingAndSorts(t *testing.T) {
	s := openStore(t)
	put(t, s, "exports/b.csv", "b", core.PutOptions{})
	put(t, s, "exports/a.csv", "a", core.PutOptions{})
	put(t, s, "budget", "[]", core.PutOptions{})
	if err := os.WriteFile(filepath.Join(s.root, tempPrefix+"stray"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write stray: %v", err)
	}

	all, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var keys []string
	for _, info := range all {
		keys = append(keys, info.Key)
	}
	if strings.Join(keys, ",") != "budget,exports/a.csv,exports/b.csv" {
		t.Fatalf("unexpected keys %v", keys)
	}

	exports, err := s.List(context.Background(), "exports/")
	if err != nil || len(exports) != 2 || exports[0].ETag == "" {
		t.Fatalf("prefix list %+v %v", exports, err)
	}
}

func TestHeadFallsBackToFileStats(t *testing.T) {
	s := openStore(t)
	if err := os.WriteFile(filepath.Join(s.root, "gisLayers"), []byte("[]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := s.Head(context.Background(), "gisLayers")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if info.Size != 2 || info.ETag != "" {
		t.Fatalf("expected stat-only info, got %+v", info)
	}
}

func TestCorruptSidecarSurfaces(t *testing.T) {
	s := openStore(t)
	put(t, s, "beneficiaries", "[]", core.PutOptions{})
	if err := os.WriteFile(filepath.Join(s.root, ".meta", "beneficiaries.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("corrupt sidecar: %v", err)
	}
	if _, err := s.List(context.Background(), ""); err == nil {
		t.Fatal("expected list error")
	}
	if _, err := s.Head(context.Background(), "beneficiaries"); err == nil {
		t.Fatal("expected head error")
	}
}

func TestSanitizeKey(t *testing.T) {
	for _, key := range []string{"", "  ", "../escape", "/abs", "a/../b", ".meta/x", "exports/" + tempPrefix + "1"} {
		if _, err := sanitizeKey(key); err == nil {
			t.Errorf("expected rejection of %q", key)
		}
	}
	got, err := sanitizeKey("exports/./x.csv")
	if err != nil || got != "exports/x.csv" {
		t.Fatalf("clean key %q %v", got, err)
	}
}

func TestNewRejectsFileRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(file); err == nil {
		t.Fatal("expected error for file root")
	}
}
