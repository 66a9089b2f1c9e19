package crud

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"crudd/internal/orm"
)

// Action scopes.
const (
	ScopeTable  = "table"
	ScopeEntity = "entity"
)

// Id validation strategies. The empty strategy follows the primary key
// column type.
const (
	ValidateIDAuto    = ""
	ValidateIDNone    = "none"
	ValidateIDInteger = "integer"
	ValidateIDUUID    = "uuid"
)

// SaveFunc replaces Table.Save for an action.
type SaveFunc func(ctx context.Context, t orm.Table, e *orm.Entity, opts orm.SaveOptions) (bool, error)

// DeleteFunc replaces Table.Delete for an action.
type DeleteFunc func(ctx context.Context, t orm.Table, e *orm.Entity) (bool, error)

// Message is a flash or exception message definition.
type Message struct {
	Text    string         `yaml:"text" json:"text"`
	Element string         `yaml:"element" json:"element"`
	Params  map[string]any `yaml:"params" json:"params"`
	Key     string         `yaml:"key" json:"key"`
	// Code is the status of an exception message.
	Code int `yaml:"code" json:"code"`
}

func (m Message) merge(o Message) Message {
	if o.Text != "" {
		m.Text = o.Text
	}
	if o.Element != "" {
		m.Element = o.Element
	}
	if len(o.Params) > 0 {
		p := make(map[string]any, len(m.Params)+len(o.Params))
		for k, v := range m.Params {
			p[k] = v
		}
		for k, v := range o.Params {
			p[k] = v
		}
		m.Params = p
	}
	if o.Key != "" {
		m.Key = o.Key
	}
	if o.Code != 0 {
		m.Code = o.Code
	}
	return m
}

// PathRule copies the value at Value into the response data at Key.
// An empty Value reads from Key.
type PathRule struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

// Source returns the read path.
func (r PathRule) Source() string {
	if r.Value == "" {
		return r.Key
	}
	return r.Value
}

// UnmarshalYAML accepts "path" or {key: path}.
func (r *PathRule) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		r.Key, r.Value = n.Value, ""
		return nil
	case yaml.MappingNode:
		if len(n.Content) == 2 && n.Content[0].Value != "key" && n.Content[0].Value != "value" {
			r.Key, r.Value = n.Content[0].Value, n.Content[1].Value
			return nil
		}
		type plain PathRule
		return n.Decode((*plain)(r))
	}
	return fmt.Errorf("line %d: path rule must be a string or a mapping", n.Line)
}

// DataRules shape the API "data" view var.
type DataRules struct {
	Subject []PathRule     `yaml:"subject" json:"subject"`
	Entity  []PathRule     `yaml:"entity" json:"entity"`
	Raw     map[string]any `yaml:"raw" json:"raw"`
}

func (d DataRules) IsZero() bool {
	return len(d.Subject) == 0 && len(d.Entity) == 0 && len(d.Raw) == 0
}

// Exception types.
const (
	ExceptionDefault  = "default"
	ExceptionValidate = "validate"
	// ExceptionNone disables an inherited exception.
	ExceptionNone = "none"
)

// APIException turns an API outcome into an error response.
type APIException struct {
	Type    string `yaml:"type" json:"type"`
	Message string `yaml:"message" json:"message"`
	Code    int    `yaml:"code" json:"code"`
}

// APIResult configures one API outcome.
type APIResult struct {
	Code      int           `yaml:"code" json:"code"`
	Data      DataRules     `yaml:"data" json:"data"`
	Exception *APIException `yaml:"exception" json:"exception"`
}

func (r APIResult) merge(o APIResult) APIResult {
	if o.Code != 0 {
		r.Code = o.Code
	}
	if !o.Data.IsZero() {
		r.Data = o.Data
	}
	if o.Exception != nil {
		e := *o.Exception
		r.Exception = &e
	}
	return r
}

// APIConfig configures API responses for an action.
type APIConfig struct {
	Methods []string  `yaml:"methods" json:"methods"`
	Success APIResult `yaml:"success" json:"success"`
	Error   APIResult `yaml:"error" json:"error"`
}

// Ref is a redirect URL element: a literal or a reader lookup.
type Ref struct {
	Reader string `yaml:"reader" json:"reader"`
	Key    string `yaml:"key" json:"key"`
	Value  string `yaml:"value" json:"value"`
}

// Lit returns a literal reference.
func Lit(v string) Ref { return Ref{Value: v} }

// Read returns a reader reference such as Read("entity.field", "id").
func Read(reader, key string) Ref { return Ref{Reader: reader, Key: key} }

// UnmarshalYAML accepts a literal scalar or a [reader, key] pair.
func (r *Ref) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*r = Lit(n.Value)
		return nil
	case yaml.SequenceNode:
		if len(n.Content) != 2 {
			return fmt.Errorf("line %d: reader reference needs [reader, key]", n.Line)
		}
		*r = Read(n.Content[0].Value, n.Content[1].Value)
		return nil
	case yaml.MappingNode:
		type plain Ref
		return n.Decode((*plain)(r))
	}
	return fmt.Errorf("line %d: invalid url reference", n.Line)
}

// RedirectURL is a URL template whose pass and query elements may be
// resolved through readers.
type RedirectURL struct {
	Controller string         `yaml:"controller" json:"controller"`
	Action     string         `yaml:"action" json:"action"`
	Pass       []Ref          `yaml:"pass" json:"pass"`
	Query      map[string]Ref `yaml:"query" json:"query"`
}

// RedirectRule redirects to URL when Reader(Key) is truthy.
type RedirectRule struct {
	Name   string      `yaml:"name" json:"name"`
	Reader string      `yaml:"reader" json:"reader"`
	Key    string      `yaml:"key" json:"key"`
	URL    RedirectURL `yaml:"url" json:"url"`
}

// Related selects the associations whose lists are published. Enabled
// with no Names means every singular and manyToMany association.
type Related struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Names   []string `yaml:"names" json:"names"`
}

// UnmarshalYAML accepts true/false, a list of names or the full form.
func (r *Related) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var b bool
		if err := n.Decode(&b); err != nil {
			return err
		}
		*r = Related{Enabled: b}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := n.Decode(&names); err != nil {
			return err
		}
		*r = Related{Enabled: true, Names: names}
		return nil
	}
	type plain Related
	return n.Decode((*plain)(r))
}

// ActionConfig is the typed configuration of one mapped action. Zero
// values mean "not configured" when merging.
type ActionConfig struct {
	Enabled       *bool                `yaml:"enabled" json:"enabled"`
	Scope         string               `yaml:"scope" json:"scope"`
	FindMethod    string               `yaml:"find_method" json:"find_method"`
	FindOptions   map[string]any       `yaml:"find_options" json:"find_options"`
	FindConfig    map[string]string    `yaml:"find_config" json:"find_config"`
	SaveOptions   *orm.SaveOptions     `yaml:"save_options" json:"save_options"`
	Save          SaveFunc             `yaml:"-" json:"-"`
	Delete        DeleteFunc           `yaml:"-" json:"-"`
	ValidateID    string               `yaml:"validate_id" json:"validate_id"`
	IDValidator   func(id string) bool `yaml:"-" json:"-"`
	View          string               `yaml:"view" json:"view"`
	ViewVar       string               `yaml:"view_var" json:"view_var"`
	EntityKey     string               `yaml:"entity_key" json:"entity_key"`
	Serialize     []string             `yaml:"serialize" json:"serialize"`
	RelatedModels *Related             `yaml:"related_models" json:"related_models"`
	Redirect      []RedirectRule       `yaml:"redirect" json:"redirect"`
	API           APIConfig            `yaml:"api" json:"api"`
	Messages      map[string]Message   `yaml:"messages" json:"messages"`
	// Name overrides the derived resource name used in messages.
	Name string `yaml:"name" json:"name"`
	// Inflection is "singular" or "plural"; empty follows the scope.
	Inflection string `yaml:"inflection" json:"inflection"`
}

// IsEnabled reports the enabled flag, true when unset.
func (c ActionConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// Merge returns c overridden by every configured field of o. Messages
// merge per key and field; redirect rules merge by name, keeping order.
func (c ActionConfig) Merge(o ActionConfig) ActionConfig {
	if o.Enabled != nil {
		v := *o.Enabled
		c.Enabled = &v
	}
	if o.Scope != "" {
		c.Scope = o.Scope
	}
	if o.FindMethod != "" {
		c.FindMethod = o.FindMethod
	}
	if o.FindOptions != nil {
		c.FindOptions = o.FindOptions
	}
	if o.FindConfig != nil {
		c.FindConfig = o.FindConfig
	}
	if o.SaveOptions != nil {
		so := *o.SaveOptions
		c.SaveOptions = &so
	}
	if o.Save != nil {
		c.Save = o.Save
	}
	if o.Delete != nil {
		c.Delete = o.Delete
	}
	if o.ValidateID != "" {
		c.ValidateID = o.ValidateID
	}
	if o.IDValidator != nil {
		c.IDValidator = o.IDValidator
	}
	if o.View != "" {
		c.View = o.View
	}
	if o.ViewVar != "" {
		c.ViewVar = o.ViewVar
	}
	if o.EntityKey != "" {
		c.EntityKey = o.EntityKey
	}
	if o.Serialize != nil {
		c.Serialize = append([]string(nil), o.Serialize...)
	}
	if o.RelatedModels != nil {
		r := *o.RelatedModels
		c.RelatedModels = &r
	}
	if len(o.Redirect) > 0 {
		c.Redirect = mergeRedirects(c.Redirect, o.Redirect)
	}
	if len(o.API.Methods) > 0 {
		c.API.Methods = append([]string(nil), o.API.Methods...)
	}
	c.API.Success = c.API.Success.merge(o.API.Success)
	c.API.Error = c.API.Error.merge(o.API.Error)
	if len(o.Messages) > 0 {
		msgs := make(map[string]Message, len(c.Messages)+len(o.Messages))
		for k, v := range c.Messages {
			msgs[k] = v
		}
		for k, v := range o.Messages {
			msgs[k] = msgs[k].merge(v)
		}
		c.Messages = msgs
	}
	if o.Name != "" {
		c.Name = o.Name
	}
	if o.Inflection != "" {
		c.Inflection = o.Inflection
	}
	return c
}

func mergeRedirects(base, over []RedirectRule) []RedirectRule {
	out := append([]RedirectRule(nil), base...)
	for _, r := range over {
		replaced := false
		for i := range out {
			if r.Name != "" && out[i].Name == r.Name {
				out[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, r)
		}
	}
	return out
}

func boolPtr(v bool) *bool { return &v }
