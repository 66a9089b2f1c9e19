package orm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"
)

// Rule names recorded in entity errors.
const (
	RuleRequired  = "_required"
	RuleEmpty     = "_empty"
	RuleMinLength = "minLength"
	RuleMaxLength = "maxLength"
	RuleNumeric   = "numeric"
)

// Marshal copies known columns from data onto e, coercing values to the
// column type. Unknown keys are ignored. Values that cannot be coerced are
// kept as given so validation can report them.
func Marshal(s *Schema, e *Entity, data map[string]any) {
	for k, v := range data {
		col, ok := s.Column(k)
		if !ok {
			continue
		}
		e.Set(k, coerce(col.Type, v))
	}
}

func coerce(typ string, v any) any {
	if v == nil {
		return nil
	}
	if str, ok := v.(string); ok && str == "" && typ != TypeString && typ != TypeText {
		return nil
	}
	var (
		out any
		err error
	)
	switch typ {
	case TypeInteger:
		out, err = cast.ToInt64E(v)
	case TypeFloat:
		out, err = cast.ToFloat64E(v)
	case TypeBoolean:
		out, err = cast.ToBoolE(v)
	case TypeString, TypeText, TypeUUID:
		out, err = cast.ToStringE(v)
	default:
		return v
	}
	if err != nil {
		return v
	}
	return out
}

// Validate checks e against the schema rules and records failures on the
// entity. Required rules apply to missing fields only for new entities.
// It reports whether the entity is valid.
func Validate(s *Schema, e *Entity) bool {
	for field, r := range s.Rules {
		v, present := e.fields[field]
		empty := !present || isEmpty(v)
		if r.Required {
			if !present && e.IsNew() {
				e.SetError(field, RuleRequired, r.message(RuleRequired, "This field is required"))
				continue
			}
			if present && empty {
				e.SetError(field, RuleEmpty, r.message(RuleEmpty, "This field cannot be left empty"))
				continue
			}
		}
		if empty {
			continue
		}
		str := cast.ToString(v)
		if r.MinLength > 0 && utf8.RuneCountInString(str) < r.MinLength {
			e.SetError(field, RuleMinLength, r.message(RuleMinLength,
				fmt.Sprintf("The provided value must be at least `%d` characters long", r.MinLength)))
		}
		if r.MaxLength > 0 && utf8.RuneCountInString(str) > r.MaxLength {
			e.SetError(field, RuleMaxLength, r.message(RuleMaxLength,
				fmt.Sprintf("The provided value must be at most `%d` characters long", r.MaxLength)))
		}
		if r.Numeric {
			if _, err := cast.ToFloat64E(v); err != nil {
				e.SetError(field, RuleNumeric, r.message(RuleNumeric, "The provided value must be numeric"))
			}
		}
	}
	return !e.HasErrors()
}

func (r Rules) message(rule, def string) string {
	if m, ok := r.Messages[strings.TrimPrefix(rule, "_")]; ok && m != "" {
		return m
	}
	if m, ok := r.Messages[rule]; ok && m != "" {
		return m
	}
	return def
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}
