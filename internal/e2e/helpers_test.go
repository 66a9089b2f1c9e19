package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"crudd/internal/httpapi"
	"crudd/internal/registry"
)

const blogsYAML = `
name: Blogs
columns:
  - {name: name, type: string}
  - {name: body, type: text}
rules:
  name:
    required: true
    min_length: 10
behaviors: [Search]
listeners: [api, jsonapi, apipagination, redirect, search, translations]
rows:
  - {name: 1st post here, body: Hello}
`

// writeResources creates a temporary resources directory holding the
// given files and returns its path.
func writeResources(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write resource %s: %v", p, err)
		}
	}
	return dir
}

// newServer loads dir, opens its tables on driver and serves them.
func newServer(t *testing.T, dir, driver, dsn string) *httptest.Server {
	t.Helper()
	res, err := registry.LoadDir(dir)
	if err != nil {
		t.Fatalf("load resources: %v", err)
	}
	tables, err := registry.OpenTables(context.Background(), res, driver, dsn)
	if err != nil {
		t.Fatalf("open tables: %v", err)
	}
	t.Cleanup(func() { _ = tables.Close() })
	svc := httpapi.NewService(res, tables.Locator)
	if err := svc.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(svc))
	t.Cleanup(srv.Close)
	return srv
}

// client does not follow redirects so tests can inspect them.
func client() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
}

func do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := client().Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpGet(t *testing.T, target string, accept string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, target, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return do(t, req)
}

func httpPostJSON(t *testing.T, target string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return do(t, req)
}

func httpPostForm(t *testing.T, target string, form url.Values, cookies ...*http.Cookie) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return do(t, req)
}
