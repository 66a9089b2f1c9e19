package crud

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"crudd/internal/orm"
)

// Response is what a controller hands back to the HTTP layer.
type Response struct {
	Status      int
	Header      http.Header
	Body        []byte
	ContentType string
}

// NewResponse returns an empty 200 response.
func NewResponse() *Response {
	return &Response{Status: http.StatusOK, Header: http.Header{}}
}

// Location returns the redirect target, if any.
func (r *Response) Location() string { return r.Header.Get("Location") }

// FlashMessage is one message queued for the next rendered page.
type FlashMessage struct {
	Text    string         `json:"text"`
	Element string         `json:"element"`
	Params  map[string]any `json:"params,omitempty"`
	Key     string         `json:"key"`
}

// Flash stores flash messages for the session.
type Flash interface {
	Set(m FlashMessage)
}

// FlashBag keeps flash messages in memory for one request.
type FlashBag struct {
	mu       sync.Mutex
	messages []FlashMessage
}

func (b *FlashBag) Set(m FlashMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, m)
}

// Messages returns the queued messages for key ("" for all).
func (b *FlashBag) Messages(key string) []FlashMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []FlashMessage
	for _, m := range b.messages {
		if key == "" || m.Key == key {
			out = append(out, m)
		}
	}
	return out
}

// View renders a controller's view vars into a response body.
type View interface {
	Render(c *Controller) (body []byte, contentType string, err error)
}

var (
	viewsMu sync.RWMutex
	views   = map[string]View{}
)

// RegisterView makes a view class available by name.
func RegisterView(name string, v View) {
	viewsMu.Lock()
	defer viewsMu.Unlock()
	views[strings.ToLower(name)] = v
}

// LookupView returns a registered view class.
func LookupView(name string) (View, bool) {
	viewsMu.RLock()
	defer viewsMu.RUnlock()
	v, ok := views[strings.ToLower(name)]
	return v, ok
}

// DefaultViewClass renders non-API requests.
const DefaultViewClass = "Html"

// Controller is the per-request host of a Crud instance: it owns the
// request, the response, the view vars and the table lookup.
type Controller struct {
	// Name is the controller (resource) name, e.g. "Blogs".
	Name     string
	Request  *Request
	Response *Response
	Router   Router
	Flash    Flash
	Tables   *orm.Locator
	Debug    bool

	vars         map[string]any
	viewClass    string
	template     string
	serialize    []SerializeEntry
	hasSerialize bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithRouter sets the router used for redirects and links.
func WithRouter(r Router) ControllerOption { return func(c *Controller) { c.Router = r } }

// WithFlash sets the flash store.
func WithFlash(f Flash) ControllerOption { return func(c *Controller) { c.Flash = f } }

// WithTables sets the table locator.
func WithTables(l *orm.Locator) ControllerOption { return func(c *Controller) { c.Tables = l } }

// WithDebug toggles debug output such as query logs.
func WithDebug(v bool) ControllerOption { return func(c *Controller) { c.Debug = v } }

// NewController returns a controller for the named resource.
func NewController(name string, req *Request, opts ...ControllerOption) *Controller {
	if req == nil {
		req = NewRequest(context.Background(), http.MethodGet, "/")
	}
	c := &Controller{
		Name:     name,
		Request:  req,
		Response: NewResponse(),
		Router:   PathRouter{},
		Flash:    &FlashBag{},
		vars:     map[string]any{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set assigns a view var.
func (c *Controller) Set(name string, v any) { c.vars[name] = v }

// Get returns a view var.
func (c *Controller) Get(name string) (any, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// Unset removes a view var.
func (c *Controller) Unset(name string) { delete(c.vars, name) }

// ViewVars returns a copy of the view vars.
func (c *Controller) ViewVars() map[string]any {
	out := make(map[string]any, len(c.vars))
	for k, v := range c.vars {
		out[k] = v
	}
	return out
}

// ViewVarNames returns the view var names in order.
func (c *Controller) ViewVarNames() []string {
	out := make([]string, 0, len(c.vars))
	for k := range c.vars {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *Controller) SetViewClass(name string) { c.viewClass = name }

// ViewClass returns the view class name, DefaultViewClass when unset.
func (c *Controller) ViewClass() string {
	if c.viewClass == "" {
		return DefaultViewClass
	}
	return c.viewClass
}

func (c *Controller) SetTemplate(name string) { c.template = name }
func (c *Controller) Template() string { return c.template }

// SerializeEntry exposes view var Var under Key in API output.
type SerializeEntry struct {
	Key string
	Var string
}

// SerializeVars builds entries whose keys equal their view var names.
func SerializeVars(names ...string) []SerializeEntry {
	out := make([]SerializeEntry, 0, len(names))
	for _, n := range names {
		out = append(out, SerializeEntry{Key: n, Var: n})
	}
	return out
}

// SetSerialize sets the view vars an API view exposes, in order.
func (c *Controller) SetSerialize(entries []SerializeEntry) {
	c.serialize = append([]SerializeEntry(nil), entries...)
	c.hasSerialize = true
}

// Serialize returns the serialize list and whether it was set.
func (c *Controller) Serialize() ([]SerializeEntry, bool) {
	return append([]SerializeEntry(nil), c.serialize...), c.hasSerialize
}

// URL renders u with the controller's router.
func (c *Controller) URL(u *URL) string { return c.Router.URL(u) }

// Redirect points the response at target.
func (c *Controller) Redirect(target string, status int) *Response {
	if status == 0 {
		status = http.StatusFound
	}
	c.Response.Status = status
	c.Response.Header.Set("Location", target)
	c.Response.Body = nil
	return c.Response
}

// Render renders the view vars through the current view class.
func (c *Controller) Render() (*Response, error) {
	name := c.ViewClass()
	v, ok := LookupView(name)
	if !ok {
		return nil, kindError(ErrMissingView, http.StatusInternalServerError, "view class %s is not registered", name)
	}
	body, ct, err := v.Render(c)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	c.Response.Body = body
	c.Response.ContentType = ct
	if c.Response.Status == 0 {
		c.Response.Status = http.StatusOK
	}
	return c.Response, nil
}
