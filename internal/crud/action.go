package crud

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"crudd/internal/common/inflect"
	"crudd/internal/event"
	"crudd/internal/orm"
)

// Built-in action kinds.
const (
	KindIndex  = "index"
	KindList   = "list"
	KindLookup = "lookup"
	KindView   = "view"
	KindAdd    = "add"
	KindEdit   = "edit"
	KindDelete = "delete"
)

// Action is one mapped controller action and its state machine.
type Action interface {
	Name() string
	Kind() string
	Config() ActionConfig
	// SetConfig merges cfg over the current configuration.
	SetConfig(cfg ActionConfig)
	Enabled() bool
	Enable()
	Disable()
	Scope() string
	FindMethod() string
	ViewVar() string
	View() string
	ResourceName() string
	EntityKey() string
	Table() (orm.Table, error)
	// Message resolves the message definition typ with {key} replacements.
	Message(typ string, replacements map[string]string) (FlashConfig, error)
	// Responding reports whether Handle dispatched to a verb handler.
	Responding() bool
	Handle(args []string) (*Response, error)
}

// VerbFunc handles one HTTP verb. A nil response with a nil error means
// "render the action's view".
type VerbFunc func(args []string) (*Response, error)

// BaseAction carries the behavior shared by every action kind. Concrete
// actions embed it and register verb handlers with On.
type BaseAction struct {
	crud *Crud
	name string
	kind string
	cfg  ActionConfig

	verbs      map[string]VerbFunc
	fallback   VerbFunc
	responding bool
}

// NewBaseAction returns the shared part of an action named name.
func NewBaseAction(c *Crud, name, kind string, cfg ActionConfig) *BaseAction {
	return &BaseAction{crud: c, name: name, kind: kind, cfg: cfg, verbs: map[string]VerbFunc{}}
}

// On registers fn for an HTTP verb. The empty verb registers the handler
// used when no verb-specific handler exists.
func (a *BaseAction) On(verb string, fn VerbFunc) {
	if verb == "" {
		a.fallback = fn
		return
	}
	a.verbs[strings.ToLower(verb)] = fn
}

func (a *BaseAction) Name() string { return a.name }
func (a *BaseAction) Kind() string { return a.kind }
func (a *BaseAction) Config() ActionConfig { return a.cfg }
func (a *BaseAction) SetConfig(cfg ActionConfig) { a.cfg = a.cfg.Merge(cfg) }
func (a *BaseAction) Enabled() bool { return a.cfg.IsEnabled() }
func (a *BaseAction) Enable() { a.cfg.Enabled = boolPtr(true) }
func (a *BaseAction) Disable() { a.cfg.Enabled = boolPtr(false) }
func (a *BaseAction) Responding() bool { return a.responding }
func (a *BaseAction) Crud() *Crud { return a.crud }
func (a *BaseAction) Controller() *Controller { return a.crud.ctrl }
func (a *BaseAction) Request() *Request { return a.crud.ctrl.Request }

// Context returns the request context.
func (a *BaseAction) Context() context.Context { return a.Request().Context() }

// Scope returns "table" or "entity".
func (a *BaseAction) Scope() string {
	if a.cfg.Scope == "" {
		return ScopeTable
	}
	return a.cfg.Scope
}

// FindMethod returns the configured finder, "all" by default.
func (a *BaseAction) FindMethod() string {
	if a.cfg.FindMethod == "" {
		return "all"
	}
	return a.cfg.FindMethod
}

// ViewVar returns the configured view var or one derived from the
// controller name.
func (a *BaseAction) ViewVar() string {
	if a.cfg.ViewVar != "" {
		return a.cfg.ViewVar
	}
	if a.Scope() == ScopeEntity {
		return inflect.Variable(inflect.Singular(a.Controller().Name))
	}
	return inflect.Variable(a.Controller().Name)
}

// View returns the template name, the action name by default.
func (a *BaseAction) View() string {
	if a.cfg.View != "" {
		return a.cfg.View
	}
	return a.name
}

// EntityKey names the subject field published as the view var.
func (a *BaseAction) EntityKey() string {
	if a.cfg.EntityKey != "" {
		return a.cfg.EntityKey
	}
	if a.Scope() == ScopeEntity {
		return "entity"
	}
	return "entities"
}

// ResourceName is the human name of the table, singular for entity
// scope and plural otherwise.
func (a *BaseAction) ResourceName() string {
	if a.cfg.Name != "" {
		return a.cfg.Name
	}
	alias := a.Controller().Name
	if t, err := a.Table(); err == nil {
		alias = t.Alias()
	}
	inflection := a.cfg.Inflection
	if inflection == "" {
		inflection = "plural"
		if a.Scope() == ScopeEntity {
			inflection = "singular"
		}
	}
	name := inflect.Underscore(alias)
	if inflection == "singular" {
		name = inflect.Singular(name)
	}
	return strings.ToLower(inflect.Humanize(name))
}

// Table returns the orchestrator's table.
func (a *BaseAction) Table() (orm.Table, error) { return a.crud.Table() }

// Handle dispatches to the handler for the request verb.
func (a *BaseAction) Handle(args []string) (*Response, error) {
	if !a.Enabled() {
		return nil, kindError(ErrActionDisabled, http.StatusNotFound, "Action %s is disabled", a.name)
	}
	verb := strings.ToLower(a.Request().Method)
	fn, ok := a.verbs[verb]
	if !ok {
		fn = a.fallback
	}
	if fn == nil {
		return nil, kindError(ErrNotImplemented, http.StatusNotImplemented,
			"Action %s does not implement a handler for HTTP verb %s", a.kind, verb)
	}
	a.responding = true
	a.crud.attachAction(a)
	return fn(args)
}

// Subject returns a fresh subject for this action.
func (a *BaseAction) Subject() *Subject {
	s := NewSubject(a.name)
	if t, err := a.Table(); err == nil {
		s.Table = t
	}
	return s
}

// Trigger fires kind through the orchestrator.
func (a *BaseAction) Trigger(kind event.Kind, s *Subject) (*event.Event[*Subject], error) {
	return a.crud.Trigger(kind, s)
}

// Message resolves a message definition by type. Action messages win
// over the orchestrator's; {name} and the replacements are substituted.
func (a *BaseAction) Message(typ string, replacements map[string]string) (FlashConfig, error) {
	m, ok := a.cfg.Messages[typ]
	if !ok || m.Text == "" {
		var global Message
		switch v := a.crud.config.Get("messages." + typ).(type) {
		case nil:
			if !ok {
				return FlashConfig{}, fmt.Errorf("invalid message type %q", typ)
			}
		case string:
			global.Text = v
		default:
			if err := a.crud.config.Decode("messages."+typ, &global); err != nil {
				return FlashConfig{}, fmt.Errorf("message %s: %w", typ, err)
			}
		}
		m = global.merge(m)
	}
	if m.Text == "" {
		return FlashConfig{}, fmt.Errorf("invalid message config for %q: no text", typ)
	}
	fc := FlashConfig{
		Type:    a.name + "." + typ,
		Name:    a.ResourceName(),
		Element: "default",
		Key:     "flash",
		Code:    m.Code,
		Params:  map[string]any{"class": "message"},
	}
	if m.Element != "" {
		fc.Element = m.Element
	}
	if m.Key != "" {
		fc.Key = m.Key
	}
	for k, v := range m.Params {
		fc.Params[k] = v
	}
	original := upperFirst(strings.ReplaceAll(m.Text, "{name}", fc.Name))
	fc.Params["original"] = original
	fc.Text = insert(original, replacements, fc.Name)
	fc.Params["class"] = fmt.Sprint(fc.Params["class"]) + " " + typ
	return fc, nil
}

// FlashConfig is a resolved message.
type FlashConfig struct {
	Type    string
	Name    string
	Text    string
	Element string
	Key     string
	Params  map[string]any
	Code    int
}

// Error returns the message as a terminal error with its code, or def
// when the message has none.
func (f FlashConfig) Error(def int) *Error {
	code := f.Code
	if code == 0 {
		code = def
	}
	return NewError(code, f.Text)
}

// SetFlash resolves the message for typ onto s, fires setFlash and, unless
// a listener stopped it, hands the message to the controller's flash.
func (a *BaseAction) SetFlash(typ string, s *Subject) error {
	fc, err := a.Message(typ, nil)
	if err != nil {
		return err
	}
	s.Type, s.Name, s.Text, s.Element, s.Key, s.Params = fc.Type, fc.Name, fc.Text, fc.Element, fc.Key, fc.Params
	ev, err := a.Trigger(event.SetFlash, s)
	if err != nil {
		return err
	}
	if ev.IsStopped() {
		return nil
	}
	if f := a.Controller().Flash; f != nil {
		f.Set(FlashMessage{Text: s.Text, Element: s.Element, Params: s.Params, Key: s.Key})
	}
	return nil
}

// Redirect sends the client to def unless the request names a redirect
// URL, after giving beforeRedirect listeners a chance to change it.
func (a *BaseAction) Redirect(s *Subject, def *URL) (*Response, error) {
	req := a.Request()
	target := def
	for _, raw := range []any{
		req.Data("_redirect_url"), req.Query("_redirect_url"),
		req.Data("redirect_url"), req.Query("redirect_url"),
	} {
		if str, ok := raw.(string); ok && str != "" {
			target = &URL{Raw: str}
			break
		}
	}
	s.URL = target
	if s.Status == 0 {
		s.Status = http.StatusFound
	}
	ev, err := a.Trigger(event.BeforeRedirect, s)
	if err != nil {
		return nil, err
	}
	if ev.IsStopped() {
		return a.Controller().Response, nil
	}
	return a.Controller().Redirect(a.Controller().URL(s.URL), s.Status), nil
}

// IndexURL is the default post-mutation redirect target.
func (a *BaseAction) IndexURL() *URL {
	return &URL{Controller: a.Controller().Name, Action: "index"}
}

// ValidateID checks id against the configured strategy. A failing id
// fires invalidId and returns the invalidId message as a 400 error.
func (a *BaseAction) ValidateID(id string) error {
	if a.validID(id) {
		return nil
	}
	s := a.Subject()
	s.ID = id
	if _, err := a.Trigger(event.InvalidID, s); err != nil {
		return err
	}
	fc, err := a.Message("invalidId", nil)
	if err != nil {
		return err
	}
	return fc.Error(http.StatusBadRequest)
}

var digits = regexp.MustCompile(`^[0-9]+$`)

func (a *BaseAction) validID(id string) bool {
	if a.cfg.IDValidator != nil {
		return a.cfg.IDValidator(id)
	}
	strategy := a.cfg.ValidateID
	if strategy == ValidateIDAuto {
		strategy = ValidateIDNone
		if t, err := a.Table(); err == nil {
			switch t.Schema().PrimaryKeyType {
			case orm.TypeInteger:
				strategy = ValidateIDInteger
			case orm.TypeUUID:
				strategy = ValidateIDUUID
			}
		}
	}
	switch strategy {
	case ValidateIDInteger:
		return digits.MatchString(id)
	case ValidateIDUUID:
		_, err := uuid.Parse(id)
		return err == nil
	}
	return true
}

// FindRecord loads the entity with primary key id. Nothing found fires
// recordNotFound and returns the recordNotFound message as a 404 error.
func (a *BaseAction) FindRecord(id string, s *Subject) (*orm.Entity, error) {
	t, err := a.Table()
	if err != nil {
		return nil, err
	}
	q := orm.NewQuery(a.FindMethod())
	for k, v := range a.cfg.FindOptions {
		q.Options[k] = v
	}
	q.AddWhere(t.Schema().PrimaryKey, id)
	s.Table, s.Query = t, q
	if _, err := a.Trigger(event.BeforeFind, s); err != nil {
		return nil, err
	}
	e, err := t.First(a.Context(), s.Query)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, a.NotFound(id, s)
	}
	s.Entity = e
	s.SetSuccess(true)
	if _, err := a.Trigger(event.AfterFind, s); err != nil {
		return nil, err
	}
	return e, nil
}

// NotFound fires recordNotFound and returns the matching error.
func (a *BaseAction) NotFound(id string, s *Subject) error {
	s.SetSuccess(false)
	if _, err := a.Trigger(event.RecordNotFound, s); err != nil {
		return err
	}
	fc, err := a.Message("recordNotFound", map[string]string{"id": id})
	if err != nil {
		return err
	}
	return fc.Error(http.StatusNotFound)
}

// SaveOptions returns the configured save options.
func (a *BaseAction) SaveOptions() orm.SaveOptions {
	if a.cfg.SaveOptions == nil {
		return orm.SaveOptions{}
	}
	return *a.cfg.SaveOptions
}

func (a *BaseAction) save(t orm.Table, e *orm.Entity, opts orm.SaveOptions) (bool, error) {
	if a.cfg.Save != nil {
		return a.cfg.Save(a.Context(), t, e, opts)
	}
	return t.Save(a.Context(), e, opts)
}

func (a *BaseAction) delete(t orm.Table, e *orm.Entity) (bool, error) {
	if a.cfg.Delete != nil {
		return a.cfg.Delete(a.Context(), t, e)
	}
	return t.Delete(a.Context(), e)
}

// publishSuccess exposes the subject's success flag as a view var.
func (a *BaseAction) publishSuccess(e *event.Event[*Subject]) error {
	if s := e.Subject(); s.HasSuccess() {
		a.Controller().Set("success", s.Succeeded())
	}
	return nil
}

// publishViewVar exposes the action result under ViewVar.
func (a *BaseAction) publishViewVar(e *event.Event[*Subject]) error {
	if !a.responding {
		return nil
	}
	name := a.ViewVar()
	s := e.Subject()
	var v any
	switch a.EntityKey() {
	case "entity":
		if s.Entity != nil {
			v = s.Entity
		}
	case "entities":
		if s.Entities != nil {
			v = s.Entities
		}
	case "list":
		v = s.List
	}
	a.Controller().Set(name, v)
	a.Controller().Set("viewVar", name)
	return nil
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// insert replaces {key} placeholders.
func insert(s string, repl map[string]string, name string) string {
	pairs := []string{"{name}", name}
	for k, v := range repl {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
