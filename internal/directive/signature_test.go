package directive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.test/api\n\ngo 1.21\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoad(t *testing.T) {
	// Disable go.work so temp directories work as standalone modules
	t.Setenv("GOWORK", "off")

	dir := writeModule(t, map[string]string{
		"client.go": `package api

import (
	"context"
	"io"
	"net/url"
)

type Item struct{ ID string }

//restproxy:client /api
type Items interface {
	//restproxy:route GET /items/{id}
	//restproxy:path id
	Get(ctx context.Context, id string) (*Item, error)

	//restproxy:route GET /items{?q}
	//restproxy:path q
	//restproxy:query =extra
	Search(c context.Context, q string, extra url.Values) ([]Item, error)

	//restproxy:route PUT /items/{id}/data
	//restproxy:path id
	//restproxy:body data
	Upload(ctx context.Context, id string, data io.Reader) error
}
`,
		// Stale generated code must not stop the load.
		GeneratedFile: `package api

var _ = undefined
`,
	})

	result, err := Load(".", dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.PackageName != "api" || result.PackagePath != "example.test/api" {
		t.Errorf("unexpected package %s (%s)", result.PackageName, result.PackagePath)
	}
	if len(result.Clients) != 1 {
		t.Fatalf("got %d clients, want 1", len(result.Clients))
	}
	c := result.Clients[0]
	if c.Name != "Items" || len(c.Methods) != 3 {
		t.Fatalf("unexpected client %s with %d methods", c.Name, len(c.Methods))
	}

	tests := []struct {
		name     string
		ctxName  string
		result   string
		params   []Param
		fullPath string
	}{
		{
			name: "Get", ctxName: "ctx", result: "*Item", fullPath: "/api/items/{id}",
			params: []Param{{Name: "id", Type: "string", Role: KindPath, Key: "id"}},
		},
		{
			name: "Search", ctxName: "c", result: "[]Item", fullPath: "/api/items{?q}",
			params: []Param{
				{Name: "q", Type: "string", Role: KindPath, Key: "q"},
				{Name: "extra", Type: "url.Values", Role: KindQuery, Key: ""},
			},
		},
		{
			name: "Upload", ctxName: "ctx", result: "", fullPath: "/api/items/{id}/data",
			params: []Param{
				{Name: "id", Type: "string", Role: KindPath, Key: "id"},
				{Name: "data", Type: "io.Reader", Role: KindBody},
			},
		},
	}
	for i, tt := range tests {
		m := c.Methods[i]
		if m.Name != tt.name {
			t.Errorf("method %d: got %s, want %s", i, m.Name, tt.name)
			continue
		}
		if m.CtxName != tt.ctxName || m.Result != tt.result {
			t.Errorf("%s: ctx %q result %q; want %q %q", m.Name, m.CtxName, m.Result, tt.ctxName, tt.result)
		}
		if got := m.FullPath(c.Prefix); got != tt.fullPath {
			t.Errorf("%s: full path %q, want %q", m.Name, got, tt.fullPath)
		}
		if len(m.Params) != len(tt.params) {
			t.Errorf("%s: got %d params, want %d", m.Name, len(m.Params), len(tt.params))
			continue
		}
		for j, p := range tt.params {
			if m.Params[j] != p {
				t.Errorf("%s param %d: got %+v, want %+v", m.Name, j, m.Params[j], p)
			}
		}
	}

	for _, path := range []string{"io", "net/url"} {
		if _, ok := result.Imports[path]; !ok {
			t.Errorf("expected import %s to be recorded, got %v", path, result.Imports)
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("GOWORK", "off")

	tests := []struct {
		name    string
		methods string
		wantErr string
	}{
		{
			name: "missing context",
			methods: `//restproxy:route GET /a
	//restproxy:query id
	Get(id string) error`,
			wantErr: "first parameter must be context.Context",
		},
		{
			name: "unbound parameter",
			methods: `//restproxy:route GET /a
	Get(ctx context.Context, id string) error`,
			wantErr: "parameter 1 (string) is not bound by a directive",
		},
		{
			name: "variadic",
			methods: `//restproxy:route GET /a
	//restproxy:query ids
	Get(ctx context.Context, ids ...string) error`,
			wantErr: "variadic methods are not supported",
		},
		{
			name: "single non-error result",
			methods: `//restproxy:route GET /a
	Get(ctx context.Context) string`,
			wantErr: "single result must be error",
		},
		{
			name: "second result not error",
			methods: `//restproxy:route GET /a
	Get(ctx context.Context) (string, bool)`,
			wantErr: "second result must be error",
		},
		{
			name: "no results",
			methods: `//restproxy:route GET /a
	Get(ctx context.Context)`,
			wantErr: "results must be error or (T, error)",
		},
		{
			name: "unbound path variable",
			methods: `//restproxy:route GET /a/{id}
	//restproxy:query id
	Get(ctx context.Context, id string) error`,
			wantErr: `path variable "id" in "/a/{id}" is not bound`,
		},
		{
			name: "invalid template",
			methods: `//restproxy:route GET /a/{id
	//restproxy:path id
	Get(ctx context.Context, id string) error`,
			wantErr: "invalid path template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeModule(t, map[string]string{
				"client.go": `package api

import "context"

var _ context.Context

//restproxy:client
type A interface {
	` + tt.methods + `
}
`,
			})
			_, err := Load(".", dir)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestLoad_PackageErrors(t *testing.T) {
	t.Setenv("GOWORK", "off")

	dir := writeModule(t, map[string]string{
		"client.go": "package api\n\nvar x int = \"s\"\n",
	})
	if _, err := Load(".", dir); err == nil || !strings.Contains(err.Error(), "package errors") {
		t.Fatalf("expected package errors, got %v", err)
	}
}

func TestFullPath(t *testing.T) {
	tests := []struct {
		prefix, path, want string
	}{
		{"", "/items", "/items"},
		{"/api", "", "/api"},
		{"/api/", "/items", "/api/items"},
		{"/api", "items", "/api/items"},
	}
	for _, tt := range tests {
		m := TypedMethod{Method: Method{Path: tt.path}}
		if got := m.FullPath(tt.prefix); got != tt.want {
			t.Errorf("FullPath(%q, %q) = %q, want %q", tt.prefix, tt.path, got, tt.want)
		}
	}
}
