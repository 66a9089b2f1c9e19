// Package orm is the persistence boundary used by the CRUD actions: table
// definitions, entities with validation errors, queries, pagination and
// query logging. Concrete tables live in the memory and sqlite
// sub-packages.
package orm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrUnknownFinder is returned when a query names a finder the table does
// not provide.
var ErrUnknownFinder = errors.New("unknown finder")

// SaveOptions tune a single Save call.
type SaveOptions struct {
	// SkipValidation persists without running the schema rules.
	SkipValidation bool `yaml:"skip_validation" json:"skip_validation"`
	// FieldList restricts which fields are written. Empty means all dirty
	// columns.
	FieldList []string `yaml:"field_list" json:"field_list"`
}

// Table is a repository over one schema.
type Table interface {
	Schema() *Schema
	Alias() string

	// NewEntity builds and validates a new entity from request data.
	NewEntity(data map[string]any) *Entity
	// PatchEntity merges data into e and validates the result.
	PatchEntity(e *Entity, data map[string]any) *Entity

	Find(ctx context.Context, q *Query) ([]*Entity, error)
	// First returns the first match or nil when nothing matches.
	First(ctx context.Context, q *Query) (*Entity, error)
	Paginate(ctx context.Context, q *Query) (*ResultSet, error)
	List(ctx context.Context, q *Query) ([]ListItem, error)

	// Save reports false without an error when validation fails.
	Save(ctx context.Context, e *Entity, opts SaveOptions) (bool, error)
	// Delete reports false without an error when no row was removed.
	Delete(ctx context.Context, e *Entity) (bool, error)
}

// FinderFunc rewrites a query before it runs.
type FinderFunc func(q *Query) (*Query, error)

// Locator resolves tables by alias; associations use it to reach targets.
type Locator struct {
	mu     sync.RWMutex
	tables map[string]Table
}

func NewLocator() *Locator { return &Locator{tables: map[string]Table{}} }

func (l *Locator) Add(t Table) {
	l.mu.Lock()
	l.tables[strings.ToLower(t.Alias())] = t
	l.mu.Unlock()
}

func (l *Locator) Get(alias string) (Table, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tables[strings.ToLower(alias)]
	return t, ok
}

// Aliases returns the registered aliases, sorted.
func (l *Locator) Aliases() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.tables))
	for _, t := range l.tables {
		out = append(out, t.Alias())
	}
	sort.Strings(out)
	return out
}

// Base carries the behaviour shared by table implementations: entity
// building, finder resolution, contain loading and query logging.
type Base struct {
	schema  *Schema
	locator *Locator
	finders map[string]FinderFunc
}

// NewBase wraps a normalized schema. A nil locator disables contain.
func NewBase(s *Schema, locator *Locator) *Base {
	b := &Base{schema: s, locator: locator, finders: map[string]FinderFunc{}}
	b.finders["all"] = func(q *Query) (*Query, error) { return q, nil }
	b.finders["list"] = func(q *Query) (*Query, error) {
		if q.KeyField == "" {
			q.KeyField = s.PrimaryKey
		}
		if q.ValueField == "" {
			q.ValueField = s.DisplayField
		}
		return q, nil
	}
	b.finders["search"] = b.searchFinder
	return b
}

func (b *Base) Schema() *Schema { return b.schema }
func (b *Base) Alias() string { return b.schema.Name }
func (b *Base) Locator() *Locator { return b.locator }

// AddFinder registers a custom finder.
func (b *Base) AddFinder(name string, fn FinderFunc) { b.finders[name] = fn }

func (b *Base) NewEntity(data map[string]any) *Entity {
	e := NewEntity(b.schema.Name, nil)
	Marshal(b.schema, e, data)
	Validate(b.schema, e)
	return e
}

func (b *Base) PatchEntity(e *Entity, data map[string]any) *Entity {
	e.errors = map[string]map[string]string{}
	patch := make(map[string]any, len(data))
	for k, v := range data {
		if k == b.schema.PrimaryKey && !e.IsNew() {
			continue
		}
		patch[k] = v
	}
	Marshal(b.schema, e, patch)
	Validate(b.schema, e)
	return e
}

// Prepare copies q and applies its finder. Unknown columns in Where and
// Order are rejected.
func (b *Base) Prepare(q *Query) (*Query, error) {
	if q == nil {
		q = NewQuery("all")
	}
	cp := *q
	cp.Where = make(map[string]any, len(q.Where))
	for k, v := range q.Where {
		cp.Where[k] = v
	}
	if q.Like != nil {
		cp.Like = make(map[string]string, len(q.Like))
		for k, v := range q.Like {
			cp.Like[k] = v
		}
	}
	finder := cp.Finder
	if finder == "" {
		finder = "all"
	}
	fn, ok := b.finders[finder]
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", b.schema.Name, ErrUnknownFinder, finder)
	}
	out, err := fn(&cp)
	if err != nil {
		return nil, err
	}
	// search arguments stack on top of any other finder
	if finder != "search" && len(out.Search) > 0 {
		if out, err = b.searchFinder(out); err != nil {
			return nil, err
		}
	}
	for k := range out.Where {
		if !b.schema.HasColumn(k) {
			return nil, fmt.Errorf("%s: unknown column %q in conditions", b.schema.Name, k)
		}
	}
	for _, o := range out.Order {
		field, _ := SplitOrder(o)
		if !b.schema.HasColumn(field) {
			return nil, fmt.Errorf("%s: unknown column %q in order", b.schema.Name, field)
		}
	}
	return out, nil
}

// searchFinder folds Search arguments into Like (string columns) and Where
// (other columns) conditions, limited to the collection's fields.
func (b *Base) searchFinder(q *Query) (*Query, error) {
	allowed := map[string]bool{}
	for _, f := range b.schema.SearchFields(q.SearchCollection) {
		allowed[f] = true
	}
	for k, v := range q.Search {
		if !allowed[k] {
			continue
		}
		col, ok := b.schema.Column(k)
		if !ok {
			continue
		}
		if col.Type == TypeString || col.Type == TypeText {
			if q.Like == nil {
				q.Like = map[string]string{}
			}
			q.Like[k] = fmt.Sprint(v)
			continue
		}
		q.Where[k] = coerce(col.Type, v)
	}
	return q, nil
}

// SplitOrder parses "field DESC" into its parts.
func SplitOrder(o string) (field string, desc bool) {
	parts := strings.Fields(o)
	if len(parts) == 0 {
		return "", false
	}
	return parts[0], len(parts) > 1 && strings.EqualFold(parts[1], "desc")
}

// LoadContain attaches associated rows named in contain to items.
func (b *Base) LoadContain(ctx context.Context, items []*Entity, contain []string) error {
	if b.locator == nil || len(items) == 0 {
		return nil
	}
	for _, name := range contain {
		a, ok := b.schema.Association(name)
		if !ok {
			return fmt.Errorf("%s is not associated with %s", name, b.schema.Name)
		}
		target, ok := b.locator.Get(a.Target)
		if !ok {
			return fmt.Errorf("association %s: target table %s not registered", a.Name, a.Target)
		}
		for _, e := range items {
			var err error
			switch a.Type {
			case ManyToOne:
				key := a.BindingKey
				if key == "" {
					key = target.Schema().PrimaryKey
				}
				if e.Get(a.ForeignKey) == nil {
					continue
				}
				var related *Entity
				related, err = target.First(ctx, NewQuery("all").AddWhere(key, e.Get(a.ForeignKey)))
				if related != nil {
					e.fields[a.Property] = related
				}
			case OneToOne:
				var related *Entity
				related, err = target.First(ctx, NewQuery("all").AddWhere(a.ForeignKey, e.Get(b.schema.PrimaryKey)))
				if related != nil {
					e.fields[a.Property] = related
				}
			case OneToMany:
				var related []*Entity
				related, err = target.Find(ctx, NewQuery("all").AddWhere(a.ForeignKey, e.Get(b.schema.PrimaryKey)))
				e.fields[a.Property] = related
			}
			if err != nil {
				return fmt.Errorf("contain %s: %w", a.Name, err)
			}
		}
	}
	return nil
}

// Log reports a statement to the loggers attached to ctx.
func (b *Base) Log(ctx context.Context, query string, params []any, start time.Time, rows int) {
	LogQuery(ctx, LoggedQuery{
		Connection: b.schema.Connection,
		Query:      query,
		Params:     params,
		Took:       time.Since(start),
		Rows:       rows,
	})
}

// WritableFields returns the dirty columns of e honouring opts.FieldList.
func (b *Base) WritableFields(e *Entity, opts SaveOptions) []string {
	allowed := map[string]bool{}
	for _, f := range opts.FieldList {
		allowed[f] = true
	}
	var out []string
	for _, c := range b.schema.Columns {
		if !e.IsDirty(c.Name) {
			continue
		}
		if len(allowed) > 0 && !allowed[c.Name] && c.Name != b.schema.PrimaryKey {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

func marshalEntities(items []*Entity) ([]byte, error) {
	list := make([]map[string]any, len(items))
	for i, e := range items {
		list[i] = e.ToMap()
	}
	return json.Marshal(list)
}
