// Package memory implements orm.Table over an in-process row slice. It is
// the default backend for demos and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"crudd/internal/orm"
)

// Table stores rows in insertion order.
type Table struct {
	*orm.Base

	mu     sync.RWMutex
	rows   []map[string]any
	nextID int64
}

// Option configures a Table.
type Option func(*Table)

// WithLocator registers the table with loc and enables contain.
func WithLocator(loc *orm.Locator) Option {
	return func(t *Table) { t.Base = orm.NewBase(t.Schema(), loc) }
}

// WithRows seeds stored rows. Values are coerced to column types.
func WithRows(rows ...map[string]any) Option {
	return func(t *Table) {
		for _, r := range rows {
			e := orm.NewEntity(t.Alias(), nil)
			orm.Marshal(t.Schema(), e, r)
			t.insert(e, t.Schema().ColumnNames())
		}
	}
}

// New builds a table for s. s is normalized in place.
func New(s *orm.Schema, opts ...Option) (*Table, error) {
	if err := s.Normalize(); err != nil {
		return nil, err
	}
	t := &Table{Base: orm.NewBase(s, nil)}
	for _, opt := range opts {
		opt(t)
	}
	if loc := t.Locator(); loc != nil {
		loc.Add(t)
	}
	orm.RegisterConnection(s.Connection)
	return t, nil
}

func (t *Table) Find(ctx context.Context, q *orm.Query) ([]*orm.Entity, error) {
	start := time.Now()
	pq, err := t.Prepare(q)
	if err != nil {
		return nil, err
	}
	t.mu.RLock()
	rows := t.match(pq)
	t.mu.RUnlock()
	if pq.Limit > 0 {
		page, limit := pq.Bounds()
		rows = window(rows, page, limit)
	}
	items := hydrate(t.Alias(), rows)
	t.Log(ctx, describe("SELECT", t.Schema(), pq), nil, start, len(items))
	if err := t.LoadContain(ctx, items, pq.Contain); err != nil {
		return nil, err
	}
	return items, nil
}

func (t *Table) First(ctx context.Context, q *orm.Query) (*orm.Entity, error) {
	cp := orm.NewQuery("all")
	if q != nil {
		c := *q
		cp = &c
	}
	cp.Page, cp.Limit = 1, 1
	items, err := t.Find(ctx, cp)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

func (t *Table) Paginate(ctx context.Context, q *orm.Query) (*orm.ResultSet, error) {
	start := time.Now()
	pq, err := t.Prepare(q)
	if err != nil {
		return nil, err
	}
	page, limit := pq.Bounds()
	t.mu.RLock()
	rows := t.match(pq)
	t.mu.RUnlock()
	total := len(rows)
	rows = window(rows, page, limit)
	items := hydrate(t.Alias(), rows)
	t.Log(ctx, describe("SELECT", t.Schema(), pq), nil, start, len(items))
	if err := t.LoadContain(ctx, items, pq.Contain); err != nil {
		return nil, err
	}
	return &orm.ResultSet{Items: items, Paging: orm.NewPaging(page, limit, len(items), total)}, nil
}

func (t *Table) List(ctx context.Context, q *orm.Query) ([]orm.ListItem, error) {
	cp := orm.NewQuery("list")
	if q != nil {
		c := *q
		c.Finder = "list"
		cp = &c
	}
	pq, err := t.Prepare(cp)
	if err != nil {
		return nil, err
	}
	pq.Finder = "all"
	items, err := t.Find(ctx, pq)
	if err != nil {
		return nil, err
	}
	return orm.Project(items, pq.KeyField, pq.ValueField), nil
}

func (t *Table) Save(ctx context.Context, e *orm.Entity, opts orm.SaveOptions) (bool, error) {
	start := time.Now()
	if !opts.SkipValidation && !orm.Validate(t.Schema(), e) {
		return false, nil
	}
	fields := t.WritableFields(e, opts)
	pk := t.Schema().PrimaryKey

	t.mu.Lock()
	defer t.mu.Unlock()
	if e.IsNew() {
		t.insert(e, fields)
		t.Log(ctx, fmt.Sprintf("INSERT INTO %s (%s)", t.Schema().Table, strings.Join(fields, ", ")), nil, start, 1)
		e.SetNew(false)
		e.Clean()
		return true, nil
	}
	idx := t.indexOf(e.Get(pk))
	if idx < 0 {
		return false, nil
	}
	for _, f := range fields {
		t.rows[idx][f] = e.Get(f)
	}
	t.Log(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", t.Schema().Table, strings.Join(fields, ", "), pk),
		[]any{e.Get(pk)}, start, 1)
	e.Clean()
	return true, nil
}

func (t *Table) Delete(ctx context.Context, e *orm.Entity) (bool, error) {
	start := time.Now()
	pk := t.Schema().PrimaryKey
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.indexOf(e.Get(pk))
	if idx < 0 {
		return false, nil
	}
	t.rows = append(t.rows[:idx], t.rows[idx+1:]...)
	t.Log(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.Schema().Table, pk), []any{e.Get(pk)}, start, 1)
	return true, nil
}

// Len returns the number of stored rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// insert stores e; callers hold the write lock or run during construction.
func (t *Table) insert(e *orm.Entity, fields []string) {
	s := t.Schema()
	if e.Get(s.PrimaryKey) == nil {
		switch s.PrimaryKeyType {
		case orm.TypeUUID:
			e.Set(s.PrimaryKey, uuid.NewString())
		default:
			t.nextID++
			id := any(t.nextID)
			if s.PrimaryKeyType == orm.TypeString {
				id = cast.ToString(t.nextID)
			}
			e.Set(s.PrimaryKey, id)
		}
	} else if n, err := cast.ToInt64E(e.Get(s.PrimaryKey)); err == nil && n > t.nextID {
		t.nextID = n
	}
	row := map[string]any{s.PrimaryKey: e.Get(s.PrimaryKey)}
	for _, f := range fields {
		row[f] = e.Get(f)
	}
	t.rows = append(t.rows, row)
}

func (t *Table) indexOf(id any) int {
	want := cast.ToString(id)
	pk := t.Schema().PrimaryKey
	for i, r := range t.rows {
		if cast.ToString(r[pk]) == want {
			return i
		}
	}
	return -1
}

// match returns copies of the rows satisfying q, sorted by q.Order.
func (t *Table) match(q *orm.Query) []map[string]any {
	var out []map[string]any
rows:
	for _, r := range t.rows {
		for k, v := range q.Where {
			if cast.ToString(r[k]) != cast.ToString(v) {
				continue rows
			}
		}
		for k, v := range q.Like {
			if !strings.Contains(strings.ToLower(cast.ToString(r[k])), strings.ToLower(v)) {
				continue rows
			}
		}
		cp := make(map[string]any, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out = append(out, cp)
	}
	if len(q.Order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.Order {
				field, desc := orm.SplitOrder(o)
				c := compare(out[i][field], out[j][field])
				if c == 0 {
					continue
				}
				if desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	return out
}

func compare(a, b any) int {
	fa, errA := cast.ToFloat64E(a)
	fb, errB := cast.ToFloat64E(b)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(cast.ToString(a), cast.ToString(b))
}

func window(rows []map[string]any, page, limit int) []map[string]any {
	from := (page - 1) * limit
	if from >= len(rows) {
		return nil
	}
	to := from + limit
	if to > len(rows) {
		to = len(rows)
	}
	return rows[from:to]
}

func hydrate(alias string, rows []map[string]any) []*orm.Entity {
	out := make([]*orm.Entity, 0, len(rows))
	for _, r := range rows {
		out = append(out, orm.Hydrate(alias, r))
	}
	return out
}

// describe renders a readable statement for the query log.
func describe(verb string, s *orm.Schema, q *orm.Query) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s * FROM %s", verb, s.Table)
	var conds []string
	for k := range q.Where {
		conds = append(conds, k+" = ?")
	}
	for k := range q.Like {
		conds = append(conds, k+" LIKE ?")
	}
	sort.Strings(conds)
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	if len(q.Order) > 0 {
		b.WriteString(" ORDER BY " + strings.Join(q.Order, ", "))
	}
	if q.Limit > 0 {
		page, limit := q.Bounds()
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", limit, (page-1)*limit)
	}
	return b.String()
}
