package listener

import (
	"fmt"

	"github.com/spf13/cast"

	"crudd/internal/confstore"
	"crudd/internal/crud"
	"crudd/internal/event"
)

// Reader resolves key against the subject or the request.
type Reader func(s *crud.Subject, key string) any

// Redirect picks the redirect target from the action's redirect rules:
// the first rule whose reader value is truthy wins.
type Redirect struct {
	Base
	readers map[string]Reader
}

// NewRedirect builds a Redirect listener with the stock readers:
// request.key (route params), request.data, request.query, entity.field
// and subject.key.
func NewRedirect(c *crud.Crud, opts *confstore.Store) (*Redirect, error) {
	l := &Redirect{Base: newBase(c, nil, opts), readers: map[string]Reader{}}
	l.SetReader("request.key", func(_ *crud.Subject, key string) any {
		if v, ok := l.request().Params[key]; ok {
			return v
		}
		return nil
	})
	l.SetReader("request.data", func(_ *crud.Subject, key string) any { return l.request().Data(key) })
	l.SetReader("request.query", func(_ *crud.Subject, key string) any {
		if vals, ok := l.request().QueryValues[key]; ok && len(vals) > 0 {
			return vals[0]
		}
		return nil
	})
	l.SetReader("entity.field", func(s *crud.Subject, key string) any {
		if s.Entity == nil {
			return nil
		}
		return s.Entity.Get(key)
	})
	l.SetReader("subject.key", func(s *crud.Subject, key string) any { return subjectFields(s)[key] })
	return l, nil
}

// SetReader adds or replaces a named reader.
func (l *Redirect) SetReader(name string, r Reader) { l.readers[name] = r }

// Reader returns a named reader.
func (l *Redirect) Reader(name string) (Reader, bool) {
	r, ok := l.readers[name]
	return r, ok
}

func (l *Redirect) Implemented() []crud.Subscription {
	return []crud.Subscription{
		{Kind: event.BeforeRedirect, Priority: event.PriorityRedirect, Handler: l.beforeRedirect},
	}
}

func (l *Redirect) beforeRedirect(e *event.Event[*crud.Subject]) error {
	a, err := l.action()
	if err != nil {
		return err
	}
	s := e.Subject()
	for _, rule := range a.Config().Redirect {
		v, err := l.read(s, rule.Reader, rule.Key)
		if err != nil {
			return err
		}
		if !truthy(v) {
			continue
		}
		u, err := l.url(s, rule.URL)
		if err != nil {
			return err
		}
		s.URL = u
		return nil
	}
	return nil
}

func (l *Redirect) url(s *crud.Subject, tpl crud.RedirectURL) (*crud.URL, error) {
	u := &crud.URL{Controller: tpl.Controller, Action: tpl.Action}
	if u.Controller == "" {
		u.Controller = l.controller().Name
	}
	for _, ref := range tpl.Pass {
		v, err := l.resolve(s, ref)
		if err != nil {
			return nil, err
		}
		u.Pass = append(u.Pass, v)
	}
	if len(tpl.Query) > 0 {
		u.Query = make(map[string]string, len(tpl.Query))
		for k, ref := range tpl.Query {
			v, err := l.resolve(s, ref)
			if err != nil {
				return nil, err
			}
			u.Query[k] = v
		}
	}
	return u, nil
}

func (l *Redirect) resolve(s *crud.Subject, ref crud.Ref) (string, error) {
	if ref.Reader == "" {
		return ref.Value, nil
	}
	v, err := l.read(s, ref.Reader, ref.Key)
	if err != nil {
		return "", err
	}
	return cast.ToString(v), nil
}

func (l *Redirect) read(s *crud.Subject, reader, key string) (any, error) {
	r, ok := l.readers[reader]
	if !ok || r == nil {
		return nil, fmt.Errorf("invalid reader: %s", reader)
	}
	return r(s, key), nil
}
