package listener

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"crudd/internal/confstore"
	"crudd/internal/crud"
	"crudd/internal/event"
)

// DetectorOptions declare a request detector in listener options.
type DetectorOptions struct {
	Accept  []string          `yaml:"accept"`
	Exclude []string          `yaml:"exclude"`
	Param   string            `yaml:"param"`
	Value   string            `yaml:"value"`
	Header  map[string]string `yaml:"header"`
}

func (d DetectorOptions) detector() crud.Detector {
	return crud.Detector{Accept: d.Accept, Exclude: d.Exclude, Param: d.Param, Value: d.Value, Header: d.Header}
}

// APIOptions configure the Api listener.
type APIOptions struct {
	// ViewClasses maps a request type (a detector name) to a view class.
	ViewClasses map[string]string          `yaml:"viewClasses"`
	Detectors   map[string]DetectorOptions `yaml:"detectors"`
	// Exception holds the defaults of exceptions raised by api.* config.
	Exception crud.APIException `yaml:"exception"`
	// SetFlash lets flash messages through on API requests.
	SetFlash bool `yaml:"setFlash"`
}

// DefaultAPIOptions returns the Api listener defaults.
func DefaultAPIOptions() map[string]any {
	return map[string]any{
		"viewClasses": map[string]any{"json": "Json", "xml": "Xml"},
		"detectors": map[string]any{
			"json": map[string]any{"accept": []any{"application/json"}, "param": "_ext", "value": "json"},
			"xml": map[string]any{
				"accept":  []any{"application/xml", "text/xml"},
				"exclude": []any{"text/html"},
				"param":   "_ext",
				"value":   "xml",
			},
		},
		"exception": map[string]any{"type": crud.ExceptionDefault, "message": "Unknown error", "code": 0},
		"setFlash":  false,
	}
}

// API makes actions answer JSON or XML clients: it enforces the allowed
// methods, silences flash messages and turns beforeRender and
// beforeRedirect into a rendered (or failed) API response.
type API struct {
	Base
	cfg APIOptions

	// render produces the response body; JSONAPI swaps it.
	render func(s *crud.Subject) (*crud.Response, error)
}

// NewAPI builds an Api listener.
func NewAPI(c *crud.Crud, opts *confstore.Store) (*API, error) {
	return newAPI(c, DefaultAPIOptions(), opts)
}

func newAPI(c *crud.Crud, defaults map[string]any, opts *confstore.Store) (*API, error) {
	l := &API{Base: newBase(c, defaults, opts)}
	if err := l.decode(&l.cfg); err != nil {
		return nil, err
	}
	l.render = l.renderAPI
	return l, nil
}

// Implemented subscribes only for API requests.
func (l *API) Implemented() []crud.Subscription {
	l.SetupDetectors()
	if !l.request().Is("api") {
		return nil
	}
	return []crud.Subscription{
		{Kind: event.BeforeHandle, Priority: event.PriorityHandle, Handler: l.beforeHandle},
		{Kind: event.SetFlash, Priority: event.PriorityFlash, Handler: l.setFlash},
		{Kind: event.BeforeRender, Priority: event.PriorityRespond, Handler: l.respond},
		{Kind: event.BeforeRedirect, Priority: event.PriorityRespond, Handler: l.respond},
	}
}

// SetupDetectors registers the configured detectors and the composite
// "api" detector matching any of them.
func (l *API) SetupDetectors() {
	req := l.request()
	names := make([]string, 0, len(l.cfg.Detectors))
	for name := range l.cfg.Detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		req.AddDetector(name, l.cfg.Detectors[name].detector())
	}
	req.AddDetector("api", crud.Detector{Func: func(r *crud.Request) bool { return r.Is(names...) }})
}

// ViewClass returns the view class for a request type.
func (l *API) ViewClass(typ string) string { return l.cfg.ViewClasses[typ] }

// SetViewClass maps a request type to a view class.
func (l *API) SetViewClass(typ, class string) {
	if l.cfg.ViewClasses == nil {
		l.cfg.ViewClasses = map[string]string{}
	}
	l.cfg.ViewClasses[typ] = class
}

func (l *API) beforeHandle(e *event.Event[*crud.Subject]) error {
	a, err := l.crud.Action(e.Subject().Action)
	if err != nil {
		return err
	}
	return checkMethods(a, l.request())
}

// checkMethods enforces the action's api.methods allow-list.
func checkMethods(a crud.Action, req *crud.Request) error {
	methods := a.Config().API.Methods
	if len(methods) == 0 {
		return nil
	}
	for _, m := range methods {
		if req.Is(m) {
			return nil
		}
	}
	upper := make([]string, len(methods))
	for i, m := range methods {
		upper[i] = strings.ToUpper(m)
	}
	msg := http.StatusText(http.StatusMethodNotAllowed)
	if fc, err := a.Message("badRequestMethod", map[string]string{"methods": strings.Join(upper, ", ")}); err == nil {
		msg = fc.Text
	}
	return crud.MethodNotAllowed(msg)
}

func (l *API) setFlash(e *event.Event[*crud.Subject]) error {
	if !l.cfg.SetFlash {
		e.StopPropagation()
	}
	return nil
}

// respond answers with the configured exception or renders the API view
// and hands the response back as the event result.
func (l *API) respond(e *event.Event[*crud.Subject]) error {
	s := e.Subject()
	a, err := l.action()
	if err != nil {
		return err
	}
	res := a.Config().API.Error
	if s.Succeeded() {
		res = a.Config().API.Success
	}
	if res.Exception != nil && res.Exception.Type != crud.ExceptionNone {
		return l.exception(s, *res.Exception)
	}
	resp, err := l.render(s)
	if err != nil {
		return err
	}
	if res.Code != 0 {
		resp.Status = res.Code
	}
	e.SetResult(resp)
	return nil
}

func (l *API) exception(s *crud.Subject, cfg crud.APIException) error {
	ex := l.cfg.Exception
	if cfg.Type != "" {
		ex.Type = cfg.Type
	}
	if cfg.Message != "" {
		ex.Message = cfg.Message
	}
	if cfg.Code != 0 {
		ex.Code = cfg.Code
	}
	if ex.Type == crud.ExceptionValidate {
		return crud.NewValidationError(s.Entity, ex.Code)
	}
	code := ex.Code
	if code == 0 {
		code = http.StatusBadRequest
	}
	return crud.NewError(code, ex.Message)
}

func (l *API) renderAPI(s *crud.Subject) (*crud.Response, error) {
	l.injectViewClass()
	l.ensureSuccess(s)
	if err := l.ensureData(s); err != nil {
		return nil, err
	}
	l.ensureSerialize()
	return l.controller().Render()
}

// injectViewClass selects the view class of the first matching type.
func (l *API) injectViewClass() {
	types := make([]string, 0, len(l.cfg.ViewClasses))
	for t := range l.cfg.ViewClasses {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		if l.request().Is(t) {
			l.controller().SetViewClass(l.cfg.ViewClasses[t])
			return
		}
	}
}

func (l *API) ensureSuccess(s *crud.Subject) {
	if v, ok := l.controller().Get("success"); ok && v != nil {
		return
	}
	l.controller().Set("success", s.Succeeded())
}

// ensureData builds the action's view var from the api data rules unless
// something already set it.
func (l *API) ensureData(s *crud.Subject) error {
	a, err := l.action()
	if err != nil {
		return err
	}
	viewVar := a.ViewVar()
	if v, ok := l.controller().Get(viewVar); ok && v != nil {
		return nil
	}
	rules := a.Config().API.Error.Data
	if s.Succeeded() {
		rules = a.Config().API.Success.Data
	}
	data, err := buildData(s, rules)
	if err != nil {
		return fmt.Errorf("api data: %w", err)
	}
	l.controller().Set(viewVar, json.RawMessage(data))
	return nil
}

func buildData(s *crud.Subject, rules crud.DataRules) ([]byte, error) {
	fields := subjectFields(s)
	expand := placeholders(fields)
	data := []byte("{}")
	var err error

	if len(rules.Subject) > 0 {
		src, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		for _, r := range rules.Subject {
			v := gjson.GetBytes(src, expand.Replace(r.Source())).Value()
			if data, err = sjson.SetBytes(data, expand.Replace(r.Key), v); err != nil {
				return nil, err
			}
		}
	}
	if s.Entity != nil {
		for _, r := range rules.Entity {
			v, ok := s.Entity.Call(r.Source())
			if !ok {
				continue
			}
			if data, err = sjson.SetBytes(data, r.Key, v); err != nil {
				return nil, err
			}
		}
	}
	keys := make([]string, 0, len(rules.Raw))
	for k := range rules.Raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if data, err = sjson.SetBytes(data, expand.Replace(k), rules.Raw[k]); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// placeholders replaces {field} with the scalar subject fields.
func placeholders(fields map[string]any) *strings.Replacer {
	var pairs []string
	for k, v := range fields {
		switch v.(type) {
		case string, bool, int, int64, float64:
			pairs = append(pairs, "{"+k+"}", cast.ToString(v))
		}
	}
	return strings.NewReplacer(pairs...)
}

// ensureSerialize exposes success, the view var as "data" and the
// action's serialize list.
func (l *API) ensureSerialize() {
	ctrl := l.controller()
	if _, set := ctrl.Serialize(); set {
		return
	}
	a, err := l.action()
	if err != nil {
		return
	}
	entries := []crud.SerializeEntry{{Key: "success", Var: "success"}, {Key: "data", Var: a.ViewVar()}}
	entries = append(entries, crud.SerializeVars(a.Config().Serialize...)...)
	ctrl.SetSerialize(entries)
}
