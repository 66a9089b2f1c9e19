package orm

import (
	"encoding/json"
	"sort"
)

// Entity is a single row with field values, per-field validation errors and
// a new/persisted flag.
type Entity struct {
	source string
	fields map[string]any
	dirty  map[string]bool
	errors map[string]map[string]string
	isNew  bool
}

// NewEntity returns a new (unsaved) entity for the given source alias.
func NewEntity(source string, data map[string]any) *Entity {
	e := &Entity{
		source: source,
		fields: make(map[string]any, len(data)),
		dirty:  map[string]bool{},
		errors: map[string]map[string]string{},
		isNew:  true,
	}
	for k, v := range data {
		e.Set(k, v)
	}
	return e
}

// Hydrate builds a persisted, clean entity from stored values.
func Hydrate(source string, data map[string]any) *Entity {
	e := NewEntity(source, data)
	e.isNew = false
	e.Clean()
	return e
}

func (e *Entity) Source() string { return e.source }
func (e *Entity) IsNew() bool { return e.isNew }

// SetNew flips the persisted flag, typically after a successful insert.
func (e *Entity) SetNew(v bool) { e.isNew = v }

// Get returns the value of field or nil.
func (e *Entity) Get(field string) any { return e.fields[field] }

// Has reports whether field is set, even to nil.
func (e *Entity) Has(field string) bool {
	_, ok := e.fields[field]
	return ok
}

// Set assigns a field value and marks it dirty.
func (e *Entity) Set(field string, v any) {
	e.fields[field] = v
	e.dirty[field] = true
}

// Unset removes field.
func (e *Entity) Unset(field string) {
	delete(e.fields, field)
	delete(e.dirty, field)
}

// Fields returns the field names in sorted order.
func (e *Entity) Fields() []string {
	out := make([]string, 0, len(e.fields))
	for k := range e.fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e *Entity) IsDirty(field string) bool { return e.dirty[field] }

// Clean resets dirty tracking and validation errors.
func (e *Entity) Clean() {
	e.dirty = map[string]bool{}
	e.errors = map[string]map[string]string{}
}

// ToMap returns a copy of the entity's fields; nested entities are
// converted as well.
func (e *Entity) ToMap() map[string]any {
	out := make(map[string]any, len(e.fields))
	for k, v := range e.fields {
		switch t := v.(type) {
		case *Entity:
			out[k] = t.ToMap()
		case []*Entity:
			list := make([]map[string]any, len(t))
			for i, c := range t {
				list[i] = c.ToMap()
			}
			out[k] = list
		default:
			out[k] = v
		}
	}
	return out
}

// SetError records a failed rule for field.
func (e *Entity) SetError(field, rule, msg string) {
	if e.errors[field] == nil {
		e.errors[field] = map[string]string{}
	}
	e.errors[field][rule] = msg
}

// Errors returns a copy of the field -> rule -> message map.
func (e *Entity) Errors() map[string]map[string]string {
	out := make(map[string]map[string]string, len(e.errors))
	for f, rules := range e.errors {
		m := make(map[string]string, len(rules))
		for r, msg := range rules {
			m[r] = msg
		}
		out[f] = m
	}
	return out
}

// FieldErrors returns the rule -> message map for one field.
func (e *Entity) FieldErrors(field string) map[string]string {
	return e.errors[field]
}

func (e *Entity) HasErrors() bool { return len(e.errors) > 0 }

// Call resolves a method-style accessor by name. Unknown names fall back to
// a field lookup; ok is false when neither exists.
func (e *Entity) Call(name string) (any, bool) {
	switch name {
	case "toArray", "toMap":
		return e.ToMap(), true
	case "isNew":
		return e.isNew, true
	case "getErrors", "errors":
		return e.Errors(), true
	case "hasErrors":
		return e.HasErrors(), true
	case "getSource", "source":
		return e.source, true
	}
	v, ok := e.fields[name]
	return v, ok
}

// MarshalJSON encodes the entity as its field map.
func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToMap())
}
