package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"crudd/internal/crud"
	"crudd/pkg/types"
)

// extensions are the URL suffixes that select a response format.
var extensions = map[string]bool{"json": true, "xml": true}

// stripExtension removes a known format extension from the last path
// segment before routing, so "/blogs/view/1.json" routes as
// "/blogs/view/1" with the "json" extension.
func stripExtension(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePath != "" {
			p = rctx.RoutePath
		}
		ext := strings.TrimPrefix(path.Ext(p), ".")
		if !extensions[strings.ToLower(ext)] {
			next.ServeHTTP(w, r)
			return
		}
		trimmed := strings.TrimSuffix(p, "."+ext)
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			rctx.RoutePath = trimmed
		}
		next.ServeHTTP(w, r.WithContext(withExt(r.Context(), strings.ToLower(ext))))
	})
}

// isJSONAPI reports whether r negotiates JSON:API.
func isJSONAPI(r *http.Request) bool {
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mt == types.JSONAPIMediaType {
		return true
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		if mt, _, err := mime.ParseMediaType(strings.TrimSpace(part)); err == nil && mt == types.JSONAPIMediaType {
			return true
		}
	}
	return false
}

// newCrudRequest converts r into the request seen by actions and
// listeners.
func newCrudRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (*crud.Request, error) {
	req := crud.NewRequest(ctx, r.Method, r.URL.Path)
	req.Host = r.Host
	req.Scheme = "http"
	if r.TLS != nil {
		req.Scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		req.Scheme = p
	}
	req.Ext = extFrom(r.Context())
	req.QueryValues = r.URL.Query()
	req.Header = r.Header.Clone()
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, k := range rctx.URLParams.Keys {
			if k != "*" {
				req.Params[k] = rctx.URLParams.Values[i]
			}
		}
	}
	if req.Ext != "" {
		req.Params["_ext"] = req.Ext
	}
	body, err := readBody(w, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Body = body
	}
	// HTML forms tunnel PUT, PATCH and DELETE through POST
	if req.Method == http.MethodPost {
		if m, ok := req.Body["_method"].(string); ok && m != "" {
			req.Method = strings.ToUpper(m)
			delete(req.Body, "_method")
		}
	}
	return req, nil
}

// readBody decodes JSON documents and form posts into a field map.
func readBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return nil, nil
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	switch {
	case mt == "application/json" || mt == types.JSONAPIMediaType || strings.HasSuffix(mt, "+json"):
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			// If exceeded size, MaxBytesReader may cause an error; still return 400 to avoid size leak details
			return nil, crud.BadRequest("invalid JSON body")
		}
		return body, nil
	case mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, crud.BadRequest("invalid form body")
		}
		body := make(map[string]any, len(r.PostForm))
		for k, v := range r.PostForm {
			switch len(v) {
			case 0:
			case 1:
				body[k] = v[0]
			default:
				list := make([]any, len(v))
				for i, s := range v {
					list[i] = s
				}
				body[k] = list
			}
		}
		return body, nil
	}
	return nil, nil
}
