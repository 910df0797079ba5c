package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectViolationsSkipsTests(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package x\n\nimport (\n\t\"fmt\"\n\t\"fieldmonitor/internal/infra/blob/fs\"\n)\n")
	writeFile(t, dir, "a_test.go", "package x\n\nimport \"fieldmonitor/internal/infra/blob/s3\"\n")
	viols, err := directViolations(dir, InfraImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.HasPrefix(viols[0], "fieldmonitor/internal/infra/blob/fs") {
		t.Fatalf("unexpected violations %v", viols)
	}
}

func TestPredicates(t *testing.T) {
	third := ThirdPartyImportForbidden("github.com/shopspring/decimal")
	cases := []struct {
		pred func(string) bool
		path string
		want bool
	}{
		{InternalImportForbidden, "fieldmonitor/internal/core", true},
		{InternalImportForbidden, "fieldmonitor/pkg/domain", false},
		{InfraImportForbidden, "fieldmonitor/internal/infraless", false},
		{third, "github.com/shopspring/decimal", false},
		{third, "github.com/go-chi/chi/v5", true},
		{third, "encoding/json", false},
		{Any(InfraImportForbidden, third), "gopkg.in/yaml.v3", true},
	}
	for _, tc := range cases {
		if got := tc.pred(tc.path); got != tc.want {
			t.Fatalf("predicate(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestTransitiveViolations(t *testing.T) {
	orig := goListDeps
	t.Cleanup(func() { goListDeps = orig })

	goListDeps = func(string) ([]byte, error) {
		return []byte("fmt\nfieldmonitor/internal/infra/blob/s3\n\n"), nil
	}
	viols, _, err := transitiveViolations("./...", InfraImportForbidden)
	if err != nil || len(viols) != 1 {
		t.Fatalf("unexpected result %v %v", viols, err)
	}

	goListDeps = func(string) ([]byte, error) { return []byte("boom"), errors.New("exit 1") }
	if _, out, err := transitiveViolations("./...", InfraImportForbidden); err == nil || string(out) != "boom" {
		t.Fatalf("expected go list failure, got %v %q", err, out)
	}
}

func TestFailIfReportsReason(t *testing.T) {
	rec := &recordingFatal{}
	failIf(rec, "forbidden direct imports", "pure layer", nil)
	if rec.msg != "" {
		t.Fatalf("unexpected failure %q", rec.msg)
	}
	failIf(rec, "forbidden direct imports", "pure layer", []string{"x"})
	if !strings.Contains(rec.msg, "pure layer") {
		t.Fatalf("missing reason in %q", rec.msg)
	}
}
