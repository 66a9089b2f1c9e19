package listener

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cast"

	"crudd/internal/common/inflect"
	"crudd/internal/confstore"
	"crudd/internal/crud"
	"crudd/internal/event"
	"crudd/internal/orm"
	"crudd/internal/view"
	"crudd/pkg/types"
)

// JSONAPIOptions configure the JsonApi listener on top of APIOptions.
type JSONAPIOptions struct {
	// WithJSONAPIVersion adds the top-level `jsonapi` member: true, or a
	// map used as its meta.
	WithJSONAPIVersion any                 `yaml:"withJsonApiVersion"`
	Meta               map[string]any      `yaml:"meta"`
	URLPrefix          string              `yaml:"urlPrefix"`
	DebugQueryLog      bool                `yaml:"debugQueryLog"`
	Include            []string            `yaml:"include"`
	FieldSets          map[string][]string `yaml:"fieldSets"`
	// DocValidatorAboutLinks links document errors to the JSON:API spec.
	DocValidatorAboutLinks bool `yaml:"docValidatorAboutLinks"`
	// AbsoluteLinks makes pagination links absolute.
	AbsoluteLinks bool `yaml:"absoluteLinks"`
}

// DefaultJSONAPIOptions returns the JsonApi listener defaults.
func DefaultJSONAPIOptions() map[string]any {
	d := DefaultAPIOptions()
	d["detectors"] = map[string]any{
		"jsonapi": map[string]any{"accept": []any{types.JSONAPIMediaType}},
	}
	d["viewClasses"] = map[string]any{"jsonapi": "JsonApi"}
	d["withJsonApiVersion"] = false
	d["urlPrefix"] = ""
	d["debugQueryLog"] = true
	d["include"] = []any{}
	d["fieldSets"] = map[string]any{}
	d["docValidatorAboutLinks"] = false
	d["absoluteLinks"] = false
	return d
}

// JSONAPI speaks JSON:API: it only accepts JSON:API requests, validates
// and flattens request documents and renders responses as JSON:API
// documents.
type JSONAPI struct {
	*API
	jcfg JSONAPIOptions
	log  *orm.QueryLog
}

// NewJSONAPI builds a JsonApi listener.
func NewJSONAPI(c *crud.Crud, opts *confstore.Store) (*JSONAPI, error) {
	api, err := newAPI(c, DefaultJSONAPIOptions(), opts)
	if err != nil {
		return nil, err
	}
	l := &JSONAPI{API: api}
	if err := api.decode(&l.jcfg); err != nil {
		return nil, err
	}
	switch l.jcfg.WithJSONAPIVersion.(type) {
	case nil, bool, map[string]any:
	default:
		return nil, fmt.Errorf("JsonApi option withJsonApiVersion only accepts a boolean or a map")
	}
	api.render = l.renderJSONAPI
	return l, nil
}

// Settings returns the decoded JSON:API options.
func (l *JSONAPI) Settings() JSONAPIOptions { return l.jcfg }

// Implemented subscribes for every request; non JSON:API requests are
// rejected in beforeHandle.
func (l *JSONAPI) Implemented() []crud.Subscription {
	l.SetupDetectors()
	return []crud.Subscription{
		{Kind: event.BeforeFilter, Priority: event.PrioritySetup, Handler: l.setupLogging},
		{Kind: event.BeforeHandle, Priority: event.PriorityHandle, Handler: l.beforeHandle},
		{Kind: event.SetFlash, Priority: event.PriorityFlash, Handler: l.setFlash},
		{Kind: event.AfterSave, Priority: event.PriorityRedirect, Handler: l.afterSave},
		{Kind: event.BeforeRender, Priority: event.PriorityRespond, Handler: l.respond},
		{Kind: event.BeforeRedirect, Priority: event.PriorityRespond, Handler: l.respond},
	}
}

func (l *JSONAPI) setupLogging(_ *event.Event[*crud.Subject]) error {
	l.log = &orm.QueryLog{}
	req := l.request()
	req.SetContext(orm.WithQueryLogger(req.Context(), l.log))
	return nil
}

func (l *JSONAPI) beforeHandle(_ *event.Event[*crud.Subject]) error {
	req := l.request()
	if !req.Is("jsonapi") {
		return crud.BadRequest(fmt.Sprintf("JSON API requests require the %q Accept header", types.JSONAPIMediaType))
	}
	if req.Is("put") {
		return crud.BadRequest("JSON API does not support the PUT method, use PATCH instead")
	}
	if ct := req.ContentType(); ct != "" && ct != types.JSONAPIMediaType {
		return crud.BadRequest(fmt.Sprintf("JSON API requests with data require the %q Content-Type header", types.JSONAPIMediaType))
	}
	return l.checkRequestData()
}

// checkRequestData validates the request document and replaces the body
// with flat entity data.
func (l *JSONAPI) checkRequestData() error {
	req := l.request()
	if len(req.Body) == 0 || req.Is("get") {
		return nil
	}
	v, err := newDocumentValidator(req.Body, l.jcfg.DocValidatorAboutLinks)
	if err != nil {
		return err
	}
	switch {
	case req.Is("post"):
		err = v.ValidateCreate()
	case req.Is("patch"):
		err = v.ValidateUpdate()
	}
	if err != nil {
		return err
	}
	req.Body = flattenDocument(req.Body)
	return nil
}

// afterSave loads belongsTo records onto a saved entity and, for a
// create, points Location at the new resource.
func (l *JSONAPI) afterSave(e *event.Event[*crud.Subject]) error {
	s := e.Subject()
	if !s.Succeeded() || (!s.Created && s.ID == "") || s.Entity == nil {
		return nil
	}
	t, err := l.table()
	if err != nil {
		return err
	}
	if err := l.insertBelongsTo(t, s.Entity); err != nil {
		return err
	}
	if s.Created {
		id := cast.ToString(s.Entity.Get(t.Schema().PrimaryKey))
		l.controller().Response.Header.Set("Location", l.resourceURL(id))
	}
	return nil
}

func (l *JSONAPI) insertBelongsTo(t orm.Table, ent *orm.Entity) error {
	tables := l.controller().Tables
	if tables == nil {
		return nil
	}
	for _, a := range t.Schema().AssociationsOf(orm.ManyToOne) {
		fk := ent.Get(a.ForeignKey)
		if fk == nil {
			continue
		}
		target, ok := tables.Get(a.Target)
		if !ok {
			continue
		}
		key := a.BindingKey
		if key == "" {
			key = target.Schema().PrimaryKey
		}
		related, err := target.First(l.request().Context(), orm.NewQuery("all").AddWhere(key, fk))
		if err != nil {
			return fmt.Errorf("load %s: %w", a.Name, err)
		}
		if related != nil {
			ent.Set(a.Property, related)
		}
	}
	return nil
}

// resourceURL is the view URL of id with the "/view" segment dropped.
func (l *JSONAPI) resourceURL(id string) string {
	ctrl := l.controller()
	u := ctrl.URL(&crud.URL{Controller: ctrl.Name, Action: "view", Pass: []string{id}})
	if i := strings.LastIndex(u, "/view/"); i >= 0 {
		u = u[:i] + "/" + u[i+len("/view/"):]
	}
	return u
}

func (l *JSONAPI) respond(e *event.Event[*crud.Subject]) error {
	l.removeForeignKeys(e.Subject())
	if err := l.API.respond(e); err != nil {
		return err
	}
	if resp, ok := e.Result().(*crud.Response); ok && l.request().Is("delete") && e.Subject().Succeeded() {
		resp.Status = http.StatusNoContent
		resp.Body = nil
		resp.ContentType = ""
	}
	return nil
}

// removeForeignKeys hides belongsTo foreign keys; the relationship member
// carries them.
func (l *JSONAPI) removeForeignKeys(s *crud.Subject) {
	t, err := l.table()
	if err != nil {
		return
	}
	var fks []string
	for _, a := range t.Schema().AssociationsOf(orm.ManyToOne) {
		fks = append(fks, a.ForeignKey)
	}
	strip := func(e *orm.Entity) {
		for _, fk := range fks {
			e.Unset(fk)
		}
	}
	if s.Entity != nil {
		strip(s.Entity)
		return
	}
	if s.Entities != nil {
		for _, e := range s.Entities.Items {
			strip(e)
		}
	}
}

func (l *JSONAPI) renderJSONAPI(s *crud.Subject) (*crud.Response, error) {
	ctrl := l.controller()
	ctrl.SetViewClass("JsonApi")
	t, err := l.table()
	if err != nil {
		return nil, err
	}
	opts := &view.JSONAPIOptions{
		Type:       resourceType(t.Alias()),
		PrimaryKey: t.Schema().PrimaryKey,
		FieldSets:  l.jcfg.FieldSets,
		Meta:       l.jcfg.Meta,
		URLPrefix:  l.jcfg.URLPrefix,
	}
	switch v := l.jcfg.WithJSONAPIVersion.(type) {
	case bool:
		opts.WithVersion = v
	case map[string]any:
		opts.WithVersion = true
		opts.VersionMeta = v
	}
	if ctrl.Debug && l.jcfg.DebugQueryLog && l.log != nil {
		opts.QueryLog = l.log.Entries()
	}
	switch {
	case s.Entity != nil:
		opts.Data = s.Entity
		opts.Relations = l.relations(t, s.Entity)
	case s.Entities != nil:
		opts.Data = s.Entities
		if s.Entities.Len() > 0 {
			opts.Relations = l.relations(t, s.Entities.Items[0])
		}
	}
	ctrl.Set(view.JSONAPIVar, opts)
	return ctrl.Render()
}

// relations lists the associations present on e, the ones the finder
// actually contained.
func (l *JSONAPI) relations(t orm.Table, e *orm.Entity) []view.JSONAPIRelation {
	var out []view.JSONAPIRelation
	for _, a := range t.Schema().Associations {
		if !e.Has(a.Property) || e.Get(a.Property) == nil {
			continue
		}
		r := view.JSONAPIRelation{Property: a.Property, Type: resourceType(a.Target), PrimaryKey: "id"}
		if tables := l.controller().Tables; tables != nil {
			if target, ok := tables.Get(a.Target); ok {
				r.PrimaryKey = target.Schema().PrimaryKey
			}
		}
		for _, inc := range l.jcfg.Include {
			if strings.EqualFold(inc, a.Name) || inc == a.Property {
				r.Included = true
			}
		}
		out = append(out, r)
	}
	return out
}

// resourceType is the JSON:API type of a table alias, e.g. "blog_posts".
func resourceType(alias string) string { return inflect.Plural(inflect.Underscore(alias)) }
