package crud

import (
	"fmt"

	"crudd/internal/orm"
)

// Subject is the per-request context threaded through every event an
// action fires. Listeners read and mutate it in place.
type Subject struct {
	Action string
	Args   []string
	ID     string

	Entity   *orm.Entity
	Entities *orm.ResultSet
	List     []orm.ListItem
	Query    *orm.Query
	Table    orm.Table

	success *bool
	Created bool

	// Redirect target, assigned right before beforeRedirect fires.
	URL    *URL
	Status int

	// Flash message fields, filled by message() and Translations.
	Type    string
	Text    string
	Element string
	Params  map[string]any
	Key     string
	Name    string

	// Set while firing relatedModel.
	Association *orm.Association
	ViewVar     string

	SaveOptions orm.SaveOptions

	// Extra is scratch space for listeners.
	Extra map[string]any

	events []string
}

// NewSubject returns a subject for the named action.
func NewSubject(action string) *Subject {
	return &Subject{Action: action, Extra: map[string]any{}}
}

// SetSuccess records the outcome. Once set it can change value but never
// become unset again.
func (s *Subject) SetSuccess(v bool) { s.success = &v }

// Succeeded reports whether success is set and true.
func (s *Subject) Succeeded() bool { return s.success != nil && *s.success }

// HasSuccess reports whether success has been set at all.
func (s *Subject) HasSuccess() bool { return s.success != nil }

// Events returns the names of the events fired with this subject, in order.
func (s *Subject) Events() []string {
	out := make([]string, len(s.events))
	copy(out, s.events)
	return out
}

// HasEvent reports whether an event with the given name was fired.
func (s *Subject) HasEvent(name string) bool {
	for _, e := range s.events {
		if e == name {
			return true
		}
	}
	return false
}

func (s *Subject) addEvent(name string) { s.events = append(s.events, name) }

// ShouldProcess reports whether the subject's action passes an only/not
// filter.
func (s *Subject) ShouldProcess(mode string, actions ...string) (bool, error) {
	in := false
	for _, a := range actions {
		if a == s.Action {
			in = true
			break
		}
	}
	switch mode {
	case "only":
		return in, nil
	case "not":
		return !in, nil
	}
	return false, fmt.Errorf("invalid mode %q", mode)
}
