package crud

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Detector is a named request predicate. A request matches when any of
// the configured checks succeeds.
type Detector struct {
	// Accept matches the preferred Accept media type among Accept and
	// Exclude. A preferred type found in Exclude never matches.
	Accept  []string
	Exclude []string
	// Param matches a route parameter ("_ext" is the URL extension)
	// against Value.
	Param string
	Value string
	// Header matches request headers by exact value.
	Header map[string]string
	Func   func(r *Request) bool
}

// Request is the inbound request as seen by actions and listeners.
type Request struct {
	ctx context.Context

	Method string
	Path   string
	// Scheme and Host of the inbound URL, used for absolute links.
	Scheme string
	Host   string
	// Ext is the URL extension without the dot ("json", "xml").
	Ext         string
	Params      map[string]string
	QueryValues url.Values
	Body        map[string]any
	Header      http.Header

	detectors map[string]Detector
}

// NewRequest returns an empty request for method and path.
func NewRequest(ctx context.Context, method, path string) *Request {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Request{
		ctx:         ctx,
		Method:      strings.ToUpper(method),
		Path:        path,
		Params:      map[string]string{},
		QueryValues: url.Values{},
		Body:        map[string]any{},
		Header:      http.Header{},
		detectors:   map[string]Detector{},
	}
}

func (r *Request) Context() context.Context { return r.ctx }

// SetContext replaces the request context, e.g. to attach a query logger.
func (r *Request) SetContext(ctx context.Context) { r.ctx = ctx }

// BaseURL returns "scheme://host", or "" when the host is unknown.
func (r *Request) BaseURL() string {
	if r.Host == "" {
		return ""
	}
	scheme := r.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + r.Host
}

// Query returns the first value of a query string parameter.
func (r *Request) Query(key string) string { return r.QueryValues.Get(key) }

// QueryMap flattens the query string to first values.
func (r *Request) QueryMap() map[string]any {
	out := make(map[string]any, len(r.QueryValues))
	for k, v := range r.QueryValues {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Data reads a dotted path from the request body; nil when missing.
func (r *Request) Data(path string) any {
	var cur any = r.Body
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// Param returns a route parameter. "_ext" falls back to Ext.
func (r *Request) Param(name string) string {
	if v, ok := r.Params[name]; ok {
		return v
	}
	if name == "_ext" {
		return r.Ext
	}
	return ""
}

// ContentType returns the request media type without parameters.
func (r *Request) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
	}
	return mt
}

// AddDetector registers or replaces a named detector.
func (r *Request) AddDetector(name string, d Detector) {
	if r.detectors == nil {
		r.detectors = map[string]Detector{}
	}
	r.detectors[strings.ToLower(name)] = d
}

// HasDetector reports whether a detector named name was added.
func (r *Request) HasDetector(name string) bool {
	_, ok := r.detectors[strings.ToLower(name)]
	return ok
}

// Is reports whether any of the named detectors match. Method names
// ("get", "post", ...) and "ajax" are built in.
func (r *Request) Is(names ...string) bool {
	for _, n := range names {
		n = strings.ToLower(n)
		if d, ok := r.detectors[n]; ok {
			if r.detect(d) {
				return true
			}
			continue
		}
		switch n {
		case "get", "post", "put", "patch", "delete", "head", "options":
			if strings.EqualFold(r.Method, n) {
				return true
			}
		case "ajax":
			if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
				return true
			}
		}
	}
	return false
}

func (r *Request) detect(d Detector) bool {
	if d.Func != nil && d.Func(r) {
		return true
	}
	for k, v := range d.Header {
		if r.Header.Get(k) == v {
			return true
		}
	}
	if len(d.Accept) > 0 {
		options := append(append([]string{}, d.Accept...), d.Exclude...)
		if pref := r.PreferredType(options...); pref != "" && !contains(d.Exclude, pref) {
			return true
		}
	}
	if d.Param != "" && r.Param(d.Param) == d.Value {
		return true
	}
	return false
}

// PreferredType returns the option with the highest Accept quality, or ""
// when the Accept header matches none of them. Wildcards are ignored.
func (r *Request) PreferredType(options ...string) string {
	type pref struct {
		mt string
		q  float64
	}
	var prefs []pref
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mt, params, err := mime.ParseMediaType(part)
		if err != nil {
			continue
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				q = f
			}
		}
		prefs = append(prefs, pref{mt: mt, q: q})
	}
	sort.SliceStable(prefs, func(a, b int) bool { return prefs[a].q > prefs[b].q })
	for _, p := range prefs {
		if p.q > 0 && contains(options, p.mt) {
			return p.mt
		}
	}
	return ""
}

// Accepts reports whether the Accept header lists any of the media types.
func (r *Request) Accepts(types ...string) bool { return r.PreferredType(types...) != "" }

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
