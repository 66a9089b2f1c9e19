package listener

import (
	"fmt"

	"crudd/internal/common/inflect"
	"crudd/internal/confstore"
	"crudd/internal/crud"
	"crudd/internal/event"
	"crudd/internal/orm"
)

// RelatedModels publishes a key/value list per associated table so forms
// can render select boxes, and contains the same associations when
// paginating.
type RelatedModels struct {
	Base
}

// NewRelatedModels builds a RelatedModels listener. The associations are
// chosen by each action's related_models setting.
func NewRelatedModels(c *crud.Crud, opts *confstore.Store) (*RelatedModels, error) {
	return &RelatedModels{Base: newBase(c, nil, opts)}, nil
}

func (l *RelatedModels) Implemented() []crud.Subscription {
	return []crud.Subscription{
		{Kind: event.BeforePaginate, Priority: event.PriorityDefault, Handler: l.beforePaginate},
		{Kind: event.BeforeRender, Priority: event.PriorityDefault, Handler: l.beforeRender},
	}
}

func (l *RelatedModels) beforePaginate(e *event.Event[*crud.Subject]) error {
	s := e.Subject()
	if s.Query == nil || len(s.Query.Contain) > 0 {
		return nil
	}
	models, err := l.Models()
	if err != nil {
		return err
	}
	for _, a := range models {
		s.Query.Contain = append(s.Query.Contain, a.Name)
	}
	return nil
}

func (l *RelatedModels) beforeRender(e *event.Event[*crud.Subject]) error {
	return l.Publish(e.Subject().Entity)
}

// Publish sets one list view var per related model unless the view var
// is already set. Each list query first goes through relatedModel.
func (l *RelatedModels) Publish(entity *orm.Entity) error {
	models, err := l.Models()
	if err != nil || len(models) == 0 {
		return err
	}
	ctrl := l.controller()
	if ctrl.Tables == nil {
		return fmt.Errorf("related models: no table locator")
	}
	for _, a := range models {
		viewVar := inflect.Variable(a.Name)
		if _, ok := ctrl.Get(viewVar); ok {
			continue
		}
		target, ok := ctrl.Tables.Get(a.Target)
		if !ok {
			return fmt.Errorf("related models: table %s is not registered", a.Target)
		}
		q := orm.NewQuery("list")
		q.KeyField = a.BindingKey
		assoc := a
		s := crud.NewSubject(l.crud.CurrentAction())
		s.Name = a.Name
		s.ViewVar = viewVar
		s.Query = q
		s.Association = &assoc
		s.Entity = entity
		s.Table = target
		if _, err := l.crud.Trigger(event.RelatedModel, s); err != nil {
			return err
		}
		items, err := target.List(l.request().Context(), s.Query)
		if err != nil {
			return fmt.Errorf("related models: %s: %w", a.Name, err)
		}
		ctrl.Set(s.ViewVar, items)
	}
	return nil
}

// Models resolves the current action's related models: every oneToOne,
// manyToOne and manyToMany association when enabled without names,
// otherwise the named ones.
func (l *RelatedModels) Models() ([]orm.Association, error) {
	a, err := l.action()
	if err != nil {
		return nil, err
	}
	rel := a.Config().RelatedModels
	if rel == nil || !rel.Enabled {
		return nil, nil
	}
	t, err := l.table()
	if err != nil {
		return nil, err
	}
	if len(rel.Names) == 0 {
		return t.Schema().AssociationsOf(orm.OneToOne, orm.ManyToOne, orm.ManyToMany), nil
	}
	out := make([]orm.Association, 0, len(rel.Names))
	for _, name := range rel.Names {
		assoc, ok := t.Schema().Association(name)
		if !ok {
			return nil, fmt.Errorf("Table %q is not associated with %q", t.Alias(), name)
		}
		out = append(out, assoc)
	}
	return out, nil
}
