// Package crud turns conventional controller actions into a sequence of
// bus events. A Crud instance is built per request around a Controller:
// it maps action names to action state machines, attaches listeners and
// runs the requested action, letting listeners observe and reshape every
// step.
package crud

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"crudd/internal/confstore"
	"crudd/internal/event"
	"crudd/internal/orm"
)

// zlog is an optional structured logger.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the orchestrator.
func SetLogger(l zerolog.Logger) { zlog = &l }

// ActionFactory builds an action instance.
type ActionFactory func(c *Crud, name string, cfg ActionConfig) Action

// ListenerFactory builds a listener from its option table.
type ListenerFactory func(c *Crud, opts *confstore.Store) (Listener, error)

// Subscription is one handler a listener wants on the bus.
type Subscription struct {
	Kind     event.Kind
	Priority event.Priority
	Handler  event.Handler[*Subject]
}

// Listener reacts to action events. Implemented is asked once per
// request, after the request is known, so the set may depend on it.
type Listener interface {
	Implemented() []Subscription
}

var registryMu sync.RWMutex

var (
	actionKinds = map[string]ActionFactory{
		KindIndex:  NewIndexAction,
		KindList:   NewListAction,
		KindLookup: NewLookupAction,
		KindView:   NewViewAction,
		KindAdd:    NewAddAction,
		KindEdit:   NewEditAction,
		KindDelete: NewDeleteAction,
	}
	listenerKinds = map[string]ListenerFactory{}
)

// RegisterAction makes an action kind available to MapAction.
func RegisterAction(kind string, f ActionFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	actionKinds[kind] = f
}

// RegisterListener makes a listener kind available to AddListener.
func RegisterListener(kind string, f ListenerFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	listenerKinds[kind] = f
}

// ActionKinds lists the registered action kinds.
func ActionKinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(actionKinds))
	for k := range actionKinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ListenerKinds lists the registered listener kinds.
func ListenerKinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(listenerKinds))
	for k := range listenerKinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func actionFactory(kind string) (ActionFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := actionKinds[kind]
	return f, ok
}

func listenerFactory(kind string) (ListenerFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := listenerKinds[kind]
	return f, ok
}

// LoggedEvent is one entry of the event log.
type LoggedEvent struct {
	Name    string
	Subject *Subject
}

// Crud is the per-request orchestrator.
type Crud struct {
	ctrl   *Controller
	bus    *event.Bus[*Subject]
	config *confstore.Store

	actions      map[string]Action
	listenerSeq  []string
	listeners    map[string]Listener
	listenerOffs map[string][]func()
	attached     bool
	actionHooked bool
	current      string

	table     orm.Table
	tableName string

	eventLogging bool
	eventLog     []LoggedEvent
}

// Option configures a Crud.
type Option func(*Crud)

// WithPrefix changes the event name prefix.
func WithPrefix(p string) Option {
	return func(c *Crud) { c.config.Set("eventPrefix", p, false) }
}

// WithMessages merges message definitions over the defaults.
func WithMessages(m map[string]any) Option {
	return func(c *Crud) { c.config.Set("messages", m, true) }
}

// WithConfig merges arbitrary settings into the orchestrator's store.
func WithConfig(m map[string]any) Option {
	return func(c *Crud) {
		for k, v := range m {
			c.config.Set(k, v, true)
		}
	}
}

// WithTable pins the table instead of resolving it through the controller.
func WithTable(t orm.Table) Option { return func(c *Crud) { c.table = t } }

// WithEventLogging records every fired event, see EventLog.
func WithEventLogging(v bool) Option { return func(c *Crud) { c.eventLogging = v } }

// DefaultConfig returns the orchestrator's baseline settings.
func DefaultConfig() map[string]any {
	return map[string]any{
		"eventPrefix": event.DefaultPrefix,
		"messages": map[string]any{
			"invalidId": map[string]any{
				"code": http.StatusBadRequest,
				"text": "Invalid id",
			},
			"recordNotFound": map[string]any{
				"code": http.StatusNotFound,
				"text": "Not found",
			},
			"badRequestMethod": map[string]any{
				"code": http.StatusMethodNotAllowed,
				"text": "Method not allowed. This action permits only {methods}",
			},
		},
	}
}

// New returns an orchestrator for ctrl.
func New(ctrl *Controller, opts ...Option) *Crud {
	c := &Crud{
		ctrl:         ctrl,
		bus:          event.NewBus[*Subject](),
		config:       confstore.New(DefaultConfig()),
		actions:      map[string]Action{},
		listeners:    map[string]Listener{},
		listenerOffs: map[string][]func(){},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Crud) Controller() *Controller { return c.ctrl }

// Config returns the orchestrator's settings store.
func (c *Crud) Config() *confstore.Store { return c.config }

// CurrentAction returns the name of the action being executed.
func (c *Crud) CurrentAction() string { return c.current }

// MapAction maps name to a new action of kind. A false enable maps the
// action disabled.
func (c *Crud) MapAction(name, kind string, cfg ActionConfig, enable bool) error {
	f, ok := actionFactory(kind)
	if !ok {
		return kindError(ErrMissingAction, http.StatusInternalServerError, "Could not find action kind %s", kind)
	}
	a := f(c, name, cfg)
	if enable {
		a.Enable()
	} else {
		a.Disable()
	}
	c.actions[name] = a
	return nil
}

// Action returns the mapped action, or the current one for an empty name.
func (c *Crud) Action(name string) (Action, error) {
	if name == "" {
		name = c.current
	}
	a, ok := c.actions[name]
	if !ok {
		return nil, kindError(ErrActionNotConfigured, http.StatusNotFound, "Action %s has not been mapped", name)
	}
	return a, nil
}

// IsActionMapped reports whether name is mapped and enabled.
func (c *Crud) IsActionMapped(name string) bool {
	a, ok := c.actions[name]
	return ok && a.Enabled()
}

// MappedActions lists the mapped action names.
func (c *Crud) MappedActions() []string {
	out := make([]string, 0, len(c.actions))
	for n := range c.actions {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Enable enables mapped actions.
func (c *Crud) Enable(names ...string) error {
	for _, n := range names {
		a, err := c.Action(n)
		if err != nil {
			return err
		}
		a.Enable()
	}
	return nil
}

// Disable disables mapped actions.
func (c *Crud) Disable(names ...string) error {
	for _, n := range names {
		a, err := c.Action(n)
		if err != nil {
			return err
		}
		a.Disable()
	}
	return nil
}

// AddListener instantiates a listener of kind under name. Listeners added
// while an action runs are attached immediately.
func (c *Crud) AddListener(name, kind string, opts map[string]any) error {
	f, ok := listenerFactory(kind)
	if !ok {
		return kindError(ErrMissingListener, http.StatusInternalServerError, "Could not find listener kind %s", kind)
	}
	l, err := f(c, confstore.New(opts))
	if err != nil {
		return fmt.Errorf("listener %s: %w", name, err)
	}
	if _, exists := c.listeners[name]; exists {
		c.RemoveListener(name)
	}
	c.listeners[name] = l
	c.listenerSeq = append(c.listenerSeq, name)
	if c.attached {
		c.attachListener(name, l)
	}
	return nil
}

// Listener returns a listener by name.
func (c *Crud) Listener(name string) (Listener, error) {
	l, ok := c.listeners[name]
	if !ok {
		return nil, kindError(ErrListenerNotConfigured, http.StatusInternalServerError, "Listener %s is not configured", name)
	}
	return l, nil
}

// Listeners lists listener names in attach order.
func (c *Crud) Listeners() []string { return append([]string(nil), c.listenerSeq...) }

// RemoveListener detaches and forgets a listener. It reports whether the
// listener existed.
func (c *Crud) RemoveListener(name string) bool {
	if _, ok := c.listeners[name]; !ok {
		return false
	}
	for _, off := range c.listenerOffs[name] {
		off()
	}
	delete(c.listenerOffs, name)
	delete(c.listeners, name)
	for i, n := range c.listenerSeq {
		if n == name {
			c.listenerSeq = append(c.listenerSeq[:i:i], c.listenerSeq[i+1:]...)
			break
		}
	}
	return true
}

func (c *Crud) attachListeners() {
	if c.attached {
		return
	}
	c.attached = true
	for _, n := range c.listenerSeq {
		c.attachListener(n, c.listeners[n])
	}
}

func (c *Crud) attachListener(name string, l Listener) {
	for _, s := range l.Implemented() {
		off := c.bus.On(s.Kind, s.Handler, event.WithPriority(s.Priority))
		c.listenerOffs[name] = append(c.listenerOffs[name], off)
	}
}

// attachAction publishes the action's view vars when rendering.
func (c *Crud) attachAction(a *BaseAction) {
	if c.actionHooked {
		return
	}
	c.actionHooked = true
	c.bus.On(event.BeforeRender, a.publishSuccess)
	c.bus.On(event.BeforeRender, a.publishViewVar)
}

// On subscribes h to kind.
func (c *Crud) On(kind event.Kind, h event.Handler[*Subject], opts ...event.SubscribeOption) func() {
	return c.bus.On(kind, h, opts...)
}

// Prefix returns the event name prefix.
func (c *Crud) Prefix() string {
	if p := c.config.String("eventPrefix"); p != "" {
		return p
	}
	return event.DefaultPrefix
}

// Trigger fires kind with s. A *Response result set by a handler is
// returned as an error that Execute unwraps into the final response.
func (c *Crud) Trigger(kind event.Kind, s *Subject) (*event.Event[*Subject], error) {
	name := kind.Name(c.Prefix())
	s.addEvent(name)
	if c.eventLogging {
		c.eventLog = append(c.eventLog, LoggedEvent{Name: name, Subject: s})
	}
	ev, err := c.bus.Trigger(kind, s)
	if err != nil {
		return ev, err
	}
	if r, ok := ev.Result().(*Response); ok && r != nil {
		return ev, &responseResult{resp: r}
	}
	return ev, nil
}

// EventLog returns the recorded events when event logging is on.
func (c *Crud) EventLog() []LoggedEvent { return append([]LoggedEvent(nil), c.eventLog...) }

// Execute runs the named action with args and returns the response.
func (c *Crud) Execute(name string, args []string) (*Response, error) {
	if name == "" {
		name = c.current
	}
	c.current = name
	if _, err := c.Action(name); err != nil {
		return nil, err
	}
	c.attachListeners()

	s := NewSubject(name)
	s.Args = args
	for _, k := range []event.Kind{event.BeforeFilter, event.Startup, event.BeforeHandle} {
		if _, err := c.Trigger(k, s); err != nil {
			return c.finish(nil, err)
		}
	}
	if s.Action != "" && s.Action != name {
		c.current = s.Action
	}
	a, err := c.Action(c.current)
	if err != nil {
		return nil, err
	}
	if zlog != nil {
		zlog.Debug().Str("controller", c.ctrl.Name).Str("action", c.current).Strs("args", s.Args).Msg("crud execute")
	}
	resp, err := a.Handle(s.Args)
	if resp, err = c.finish(resp, err); err != nil || resp != nil {
		return resp, err
	}
	c.ctrl.SetTemplate(a.View())
	return c.ctrl.Render()
}

func (c *Crud) finish(resp *Response, err error) (*Response, error) {
	var rr *responseResult
	if errors.As(err, &rr) {
		return rr.resp, nil
	}
	return resp, err
}

// FindMethod returns the current action's finder.
func (c *Crud) FindMethod() string {
	if a, err := c.Action(""); err == nil {
		return a.FindMethod()
	}
	return ""
}

// SetFindMethod changes the current action's finder.
func (c *Crud) SetFindMethod(m string) error {
	a, err := c.Action("")
	if err != nil {
		return err
	}
	a.SetConfig(ActionConfig{FindMethod: m})
	return nil
}

// ViewVar returns the current action's view var.
func (c *Crud) ViewVar() string {
	if a, err := c.Action(""); err == nil {
		return a.ViewVar()
	}
	return ""
}

// SetViewVar changes the current action's view var.
func (c *Crud) SetViewVar(v string) error {
	a, err := c.Action("")
	if err != nil {
		return err
	}
	a.SetConfig(ActionConfig{ViewVar: v})
	return nil
}

// View returns the current action's template.
func (c *Crud) View() string {
	if a, err := c.Action(""); err == nil {
		return a.View()
	}
	return ""
}

// SetView changes the current action's template.
func (c *Crud) SetView(v string) error {
	a, err := c.Action("")
	if err != nil {
		return err
	}
	a.SetConfig(ActionConfig{View: v})
	return nil
}

// UseTable switches the table alias used by every action.
func (c *Crud) UseTable(alias string) {
	c.tableName = alias
	c.table = nil
}

// Table resolves the active table through the controller's locator,
// by the UseTable alias or the controller name.
func (c *Crud) Table() (orm.Table, error) {
	if c.table != nil {
		return c.table, nil
	}
	alias := c.tableName
	if alias == "" {
		alias = c.ctrl.Name
	}
	if c.ctrl.Tables == nil {
		return nil, fmt.Errorf("no table locator for %s", alias)
	}
	t, ok := c.ctrl.Tables.Get(alias)
	if !ok {
		return nil, fmt.Errorf("table %s is not registered", alias)
	}
	c.table = t
	return t, nil
}

// Entity builds a new entity on the active table.
func (c *Crud) Entity(data map[string]any) (*orm.Entity, error) {
	t, err := c.Table()
	if err != nil {
		return nil, err
	}
	return t.NewEntity(data), nil
}
