// Package listener provides the stock listeners an orchestrator can attach:
// API rendering (plain and JSON:API), pagination and query-log decoration,
// redirects, related model lists, search, flash translations and
// instrumentation.
package listener

import (
	"fmt"
	"reflect"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"crudd/internal/confstore"
	"crudd/internal/crud"
	"crudd/internal/orm"
	"crudd/pkg/types"
)

// Listener kinds accepted by crud.Crud.AddListener after Register.
const (
	KindAPI           = "api"
	KindJSONAPI       = "jsonapi"
	KindAPIPagination = "apipagination"
	KindAPIQueryLog   = "apiquerylog"
	KindRedirect      = "redirect"
	KindRelatedModels = "relatedmodels"
	KindSearch        = "search"
	KindTranslations  = "translations"
	KindEventLog      = "eventlog"
	KindMetrics       = "metrics"
	KindAudit         = "audit"
)

var zlog = zerolog.Nop()

// SetLogger installs the logger used by the EventLog listener and for
// listener diagnostics.
func SetLogger(l zerolog.Logger) { zlog = l }

// Register makes every listener kind available to crud.Crud.AddListener.
func Register() {
	crud.RegisterListener(KindAPI, func(c *crud.Crud, o *confstore.Store) (crud.Listener, error) { return NewAPI(c, o) })
	crud.RegisterListener(KindJSONAPI, func(c *crud.Crud, o *confstore.Store) (crud.Listener, error) { return NewJSONAPI(c, o) })
	crud.RegisterListener(KindAPIPagination, func(c *crud.Crud, o *confstore.Store) (crud.Listener, error) { return NewAPIPagination(c, o) })
	crud.RegisterListener(KindAPIQueryLog, func(c *crud.Crud, o *confstore.Store) (crud.Listener, error) { return NewAPIQueryLog(c, o) })
	crud.RegisterListener(KindRedirect, func(c *crud.Crud, o *confstore.Store) (crud.Listener, error) { return NewRedirect(c, o) })
	crud.RegisterListener(KindRelatedModels, func(c *crud.Crud, o *confstore.Store) (crud.Listener, error) { return NewRelatedModels(c, o) })
	crud.RegisterListener(KindSearch, func(c *crud.Crud, o *confstore.Store) (crud.Listener, error) { return NewSearch(c, o) })
	crud.RegisterListener(KindTranslations, func(c *crud.Crud, o *confstore.Store) (crud.Listener, error) { return NewTranslations(c, o) })
	crud.RegisterListener(KindEventLog, func(c *crud.Crud, o *confstore.Store) (crud.Listener, error) { return NewEventLog(c, o) })
	crud.RegisterListener(KindMetrics, func(c *crud.Crud, o *confstore.Store) (crud.Listener, error) { return NewMetrics(c, o) })
	crud.RegisterListener(KindAudit, func(c *crud.Crud, o *confstore.Store) (crud.Listener, error) { return NewAudit(c, o) })
}

// Base carries the orchestrator and the listener's options: the kind's
// defaults with the caller's options merged over them.
type Base struct {
	crud *crud.Crud
	opts *confstore.Store
}

func newBase(c *crud.Crud, defaults map[string]any, opts *confstore.Store) Base {
	store := confstore.New(defaults)
	if opts != nil {
		store.Set("", opts.All(), true)
	}
	return Base{crud: c, opts: store}
}

// decode maps the merged options onto out.
func (b *Base) decode(out any) error {
	if err := b.opts.Decode("", out); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	return nil
}

func (b *Base) Crud() *crud.Crud { return b.crud }

// Options returns the merged option store.
func (b *Base) Options() *confstore.Store { return b.opts }

func (b *Base) controller() *crud.Controller { return b.crud.Controller() }
func (b *Base) request() *crud.Request { return b.crud.Controller().Request }

// action returns the action being executed.
func (b *Base) action() (crud.Action, error) { return b.crud.Action("") }

func (b *Base) table() (orm.Table, error) { return b.crud.Table() }

// subjectFields exposes the subject as a plain map, the shape data rules
// and readers address.
func subjectFields(s *crud.Subject) map[string]any {
	out := map[string]any{
		"action":  s.Action,
		"args":    s.Args,
		"id":      s.ID,
		"success": s.Succeeded(),
		"created": s.Created,
		"type":    s.Type,
		"text":    s.Text,
		"element": s.Element,
		"key":     s.Key,
		"name":    s.Name,
		"viewVar": s.ViewVar,
		"status":  s.Status,
	}
	if s.Entity != nil {
		out["entity"] = s.Entity.ToMap()
	}
	if s.Entities != nil {
		out["entities"] = s.Entities
	}
	if s.List != nil {
		out["list"] = s.List
	}
	if s.Params != nil {
		out["params"] = s.Params
	}
	for k, v := range s.Extra {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out
}

// truthy follows the loose truth rules used by redirect readers.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "0"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return cast.ToFloat64(t) != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

// ensureAPIDetectors installs the default API detectors when no Api or
// JsonApi listener has set them up yet.
func ensureAPIDetectors(req *crud.Request) {
	if req.HasDetector("api") {
		return
	}
	req.AddDetector("json", crud.Detector{Accept: []string{"application/json"}, Param: "_ext", Value: "json"})
	req.AddDetector("xml", crud.Detector{
		Accept:  []string{"application/xml", "text/xml"},
		Exclude: []string{"text/html"},
		Param:   "_ext",
		Value:   "xml",
	})
	req.AddDetector("jsonapi", crud.Detector{Accept: []string{types.JSONAPIMediaType}})
	req.AddDetector("api", crud.Detector{Func: func(r *crud.Request) bool { return r.Is("json", "xml", "jsonapi") }})
}
