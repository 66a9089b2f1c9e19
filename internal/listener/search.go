package listener

import (
	"fmt"

	"crudd/internal/confstore"
	"crudd/internal/crud"
	"crudd/internal/event"
)

// Search applies the query string as search arguments to index and
// lookup queries. The table must carry the Search behavior.
type Search struct {
	Base
	enabled    []event.Kind
	collection string
}

var pagingParams = map[string]bool{"page": true, "limit": true, "sort": true, "direction": true}

// NewSearch builds a Search listener. Options: enabled lists the events to
// hook (default Crud.beforeLookup and Crud.beforePaginate) and collection
// names the search collection (default "default").
func NewSearch(c *crud.Crud, opts *confstore.Store) (*Search, error) {
	l := &Search{Base: newBase(c, map[string]any{
		"enabled":    []any{"Crud.beforeLookup", "Crud.beforePaginate"},
		"collection": "default",
	}, opts)}
	for _, name := range l.opts.Strings("enabled") {
		k, ok := event.ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("search: unknown event %q", name)
		}
		l.enabled = append(l.enabled, k)
	}
	l.collection = l.opts.String("collection")
	return l, nil
}

func (l *Search) Implemented() []crud.Subscription {
	subs := make([]crud.Subscription, 0, len(l.enabled))
	for _, k := range l.enabled {
		subs = append(subs, crud.Subscription{Kind: k, Priority: event.PriorityDefault, Handler: l.injectSearch})
	}
	return subs
}

func (l *Search) injectSearch(e *event.Event[*crud.Subject]) error {
	s := e.Subject()
	t, err := l.table()
	if err != nil {
		return err
	}
	if !t.Schema().HasBehavior("Search") {
		return fmt.Errorf("missing Search behavior on %s", t.Alias())
	}
	if s.Query == nil {
		return nil
	}
	args := map[string]any{}
	for k, v := range l.request().QueryMap() {
		if !pagingParams[k] {
			args[k] = v
		}
	}
	s.Query.Search = args
	s.Query.SearchCollection = l.collection
	return nil
}
