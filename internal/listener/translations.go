package listener

import (
	"errors"
	"fmt"
	"strings"

	"crudd/internal/confstore"
	"crudd/internal/crud"
	"crudd/internal/event"
)

// DefaultTranslations returns the flash message table, keyed by
// "<action>.<outcome>".
func DefaultTranslations() map[string]any {
	msg := func(text string) map[string]any { return map[string]any{"message": text} }
	return map[string]any{
		"name":    "",
		"catalog": map[string]any{},
		"add": map[string]any{
			"success": msg("Successfully created {name}"),
			"error":   msg("Could not create {name}"),
		},
		"edit": map[string]any{
			"success": msg("{name} was successfully updated"),
			"error":   msg("Could not update {name}"),
		},
		"delete": map[string]any{
			"success": msg("Successfully deleted {name}"),
			"error":   msg("Could not delete {name}"),
		},
	}
}

// Translations rewrites flash messages from a nested message table. The
// subject's type ("add.success") addresses the table; {name} is replaced
// with the name option or the subject's resource name, and the result is
// looked up in the catalog option.
type Translations struct {
	Base
}

// NewTranslations builds a Translations listener; options merge over
// DefaultTranslations.
func NewTranslations(c *crud.Crud, opts *confstore.Store) (*Translations, error) {
	return &Translations{Base: newBase(c, DefaultTranslations(), opts)}, nil
}

func (l *Translations) Implemented() []crud.Subscription {
	return []crud.Subscription{
		{Kind: event.SetFlash, Priority: event.PriorityFlash, Handler: l.setFlash},
	}
}

type translation struct {
	Message string         `yaml:"message"`
	Element string         `yaml:"element"`
	Params  map[string]any `yaml:"params"`
	Key     string         `yaml:"key"`
}

func (l *Translations) setFlash(e *event.Event[*crud.Subject]) error {
	s := e.Subject()
	if s.Type == "" {
		return errors.New("missing flash type")
	}
	if _, ok := l.opts.Get(s.Type).(map[string]any); !ok {
		return fmt.Errorf("invalid flash type %q", s.Type)
	}
	t := translation{Element: "default", Key: "flash"}
	if err := l.opts.Decode(s.Type, &t); err != nil {
		return err
	}
	params := map[string]any{"class": "message"}
	for k, v := range t.Params {
		params[k] = v
	}
	outcome := s.Type[strings.LastIndex(s.Type, ".")+1:]
	params["class"] = fmt.Sprint(params["class"]) + " " + outcome

	name := l.opts.String("name")
	if name == "" {
		name = s.Name
	}
	text := strings.ReplaceAll(t.Message, "{name}", name)
	if catalog, ok := l.opts.Get("catalog").(map[string]any); ok {
		if tr, ok := catalog[text].(string); ok && tr != "" {
			text = tr
		}
	}
	s.Text = text
	s.Element = t.Element
	s.Params = params
	s.Key = t.Key
	return nil
}
