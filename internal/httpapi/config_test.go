package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB on zero, got %d", maxBodyBytes)
	}
}

func TestSetMaxBodyBytes_PositiveSetsValue(t *testing.T) {
	defer SetMaxBodyBytes(0)
	SetMaxBodyBytes(1234)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestCORSOptions_AddsHeadersWhenEnabled(t *testing.T) {
	defer SetCORSOptions(false, nil, nil, nil)
	SetCORSOptions(true, []string{"https://app.example"}, []string{"GET", "POST"}, []string{"Content-Type"})

	h := NewMux(&Service{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("missing CORS header, got %q", got)
	}

	SetCORSOptions(false, nil, nil, nil)
	h = NewMux(&Service{})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected CORS header with CORS disabled: %q", got)
	}
}

func TestCORSOptions_Defaults(t *testing.T) {
	defer SetCORSOptions(false, nil, nil, nil)
	SetCORSOptions(true, []string{"*"}, nil, nil)
	o := corsOptions()
	if len(o.AllowedMethods) != len(crudMethods) || len(o.AllowedHeaders) != len(crudHeaders) {
		t.Fatalf("defaults not applied: %+v", o)
	}
	SetCORSOptions(true, []string{"*"}, []string{"GET"}, []string{"Accept"})
	o = corsOptions()
	if len(o.AllowedMethods) != 1 || o.AllowedMethods[0] != "GET" || len(o.AllowedHeaders) != 1 {
		t.Fatalf("explicit lists not kept: %+v", o)
	}
}
