package httpapi_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

func TestEveryRouteIsDocumented(t *testing.T) {
	e := setup(t)
	resp := do(t, e.router, http.MethodGet, "/api/v1/openapi.yaml", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("openapi: %d", resp.Code)
	}
	var doc struct {
		Paths map[string]map[string]any `yaml:"paths"`
	}
	if err := yaml.Unmarshal(resp.Body.Bytes(), &doc); err != nil {
		t.Fatalf("parse openapi: %v", err)
	}

	routes, ok := e.router.(chi.Routes)
	if !ok {
		t.Fatalf("router %T does not expose routes", e.router)
	}
	walked := 0
	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		walked++
		path := strings.ReplaceAll(route, "/*", "")
		if len(path) > 1 {
			path = strings.TrimSuffix(path, "/")
		}
		if _, ok := doc.Paths[path][strings.ToLower(method)]; !ok {
			t.Errorf("%s %s is not documented", method, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if walked == 0 {
		t.Fatal("no routes walked")
	}
}
