// Package sqlite implements orm.Table on database/sql with the go-sqlite3
// driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"crudd/internal/orm"
)

// Open opens a SQLite database. An empty dsn opens a private in-memory
// database.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// Table maps one schema onto one SQLite table.
type Table struct {
	*orm.Base
	db *sql.DB
}

// New builds a table for s and creates it when missing. s is normalized in
// place. loc may be nil.
func New(ctx context.Context, db *sql.DB, s *orm.Schema, loc *orm.Locator) (*Table, error) {
	if err := s.Normalize(); err != nil {
		return nil, err
	}
	t := &Table{Base: orm.NewBase(s, loc), db: db}
	if err := t.migrate(ctx); err != nil {
		return nil, err
	}
	if loc != nil {
		loc.Add(t)
	}
	orm.RegisterConnection(s.Connection)
	return t, nil
}

func (t *Table) migrate(ctx context.Context) error {
	s := t.Schema()
	defs := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		def := quote(c.Name) + " " + sqlType(c.Type)
		if c.Name == s.PrimaryKey {
			if s.PrimaryKeyType == orm.TypeInteger {
				def = quote(c.Name) + " INTEGER PRIMARY KEY AUTOINCREMENT"
			} else {
				def = quote(c.Name) + " TEXT PRIMARY KEY"
			}
		}
		defs = append(defs, def)
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(s.Table), strings.Join(defs, ", "))
	start := time.Now()
	if _, err := t.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", s.Table, err)
	}
	t.Log(ctx, stmt, nil, start, 0)
	return nil
}

func (t *Table) Find(ctx context.Context, q *orm.Query) ([]*orm.Entity, error) {
	pq, err := t.Prepare(q)
	if err != nil {
		return nil, err
	}
	where, args := conditions(pq)
	stmt := "SELECT * FROM " + quote(t.Schema().Table) + where + orderBy(pq)
	if pq.Limit > 0 {
		page, limit := pq.Bounds()
		stmt += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, (page-1)*limit)
	}
	items, err := t.query(ctx, stmt, args)
	if err != nil {
		return nil, err
	}
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
	pq, err := t.Prepare(q)
	if err != nil {
		return nil, err
	}
	page, limit := pq.Bounds()
	where, args := conditions(pq)

	start := time.Now()
	countStmt := "SELECT COUNT(*) FROM " + quote(t.Schema().Table) + where
	var total int
	if err := t.db.QueryRowContext(ctx, countStmt, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count %s: %w", t.Schema().Table, err)
	}
	t.Log(ctx, countStmt, args, start, 1)

	stmt := "SELECT * FROM " + quote(t.Schema().Table) + where + orderBy(pq) +
		fmt.Sprintf(" LIMIT %d OFFSET %d", limit, (page-1)*limit)
	items, err := t.query(ctx, stmt, args)
	if err != nil {
		return nil, err
	}
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
	s := t.Schema()
	if !opts.SkipValidation && !orm.Validate(s, e) {
		return false, nil
	}
	if e.IsNew() && e.Get(s.PrimaryKey) == nil && s.PrimaryKeyType == orm.TypeUUID {
		e.Set(s.PrimaryKey, uuid.NewString())
	}
	fields := t.WritableFields(e, opts)
	args := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		args = append(args, e.Get(f))
	}

	start := time.Now()
	if e.IsNew() {
		cols := make([]string, len(fields))
		marks := make([]string, len(fields))
		for i, f := range fields {
			cols[i] = quote(f)
			marks[i] = "?"
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(s.Table), strings.Join(cols, ", "), strings.Join(marks, ", "))
		if len(fields) == 0 {
			stmt = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quote(s.Table))
		}
		res, err := t.db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return false, fmt.Errorf("insert %s: %w", s.Table, err)
		}
		t.Log(ctx, stmt, args, start, 1)
		if e.Get(s.PrimaryKey) == nil {
			id, err := res.LastInsertId()
			if err != nil {
				return false, fmt.Errorf("insert %s: last id: %w", s.Table, err)
			}
			e.Set(s.PrimaryKey, id)
		}
		e.SetNew(false)
		e.Clean()
		return true, nil
	}

	var sets []string
	var setArgs []any
	for i, f := range fields {
		if f == s.PrimaryKey {
			continue
		}
		sets = append(sets, quote(f)+" = ?")
		setArgs = append(setArgs, args[i])
	}
	if len(sets) == 0 {
		e.Clean()
		return true, nil
	}
	setArgs = append(setArgs, e.Get(s.PrimaryKey))
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", quote(s.Table), strings.Join(sets, ", "), quote(s.PrimaryKey))
	res, err := t.db.ExecContext(ctx, stmt, setArgs...)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", s.Table, err)
	}
	n, _ := res.RowsAffected()
	t.Log(ctx, stmt, setArgs, start, int(n))
	if n == 0 {
		return false, nil
	}
	e.Clean()
	return true, nil
}

func (t *Table) Delete(ctx context.Context, e *orm.Entity) (bool, error) {
	s := t.Schema()
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(s.Table), quote(s.PrimaryKey))
	start := time.Now()
	res, err := t.db.ExecContext(ctx, stmt, e.Get(s.PrimaryKey))
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", s.Table, err)
	}
	n, _ := res.RowsAffected()
	t.Log(ctx, stmt, []any{e.Get(s.PrimaryKey)}, start, int(n))
	return n > 0, nil
}

func (t *Table) query(ctx context.Context, stmt string, args []any) ([]*orm.Entity, error) {
	start := time.Now()
	rows, err := t.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.Schema().Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var items []*orm.Entity
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Schema().Table, err)
		}
		data := make(map[string]any, len(cols))
		for i, c := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			if col, ok := t.Schema().Column(c); ok && col.Type == orm.TypeBoolean && v != nil {
				v = v != int64(0)
			}
			data[c] = v
		}
		items = append(items, orm.Hydrate(t.Alias(), data))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	t.Log(ctx, stmt, args, start, len(items))
	return items, nil
}

func conditions(q *orm.Query) (string, []any) {
	keys := make([]string, 0, len(q.Where))
	for k := range q.Where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	var args []any
	for _, k := range keys {
		if q.Where[k] == nil {
			parts = append(parts, quote(k)+" IS NULL")
			continue
		}
		parts = append(parts, quote(k)+" = ?")
		args = append(args, q.Where[k])
	}
	likes := make([]string, 0, len(q.Like))
	for k := range q.Like {
		likes = append(likes, k)
	}
	sort.Strings(likes)
	for _, k := range likes {
		parts = append(parts, "LOWER("+quote(k)+") LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Like[k])+"%")
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func orderBy(q *orm.Query) string {
	if len(q.Order) == 0 {
		return ""
	}
	parts := make([]string, len(q.Order))
	for i, o := range q.Order {
		field, desc := orm.SplitOrder(o)
		dir := "ASC"
		if desc {
			dir = "DESC"
		}
		parts[i] = quote(field) + " " + dir
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func sqlType(t string) string {
	switch t {
	case orm.TypeInteger, orm.TypeBoolean:
		return "INTEGER"
	case orm.TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// quote wraps an identifier. Identifiers come from the schema; Prepare
// rejects unknown columns before statements are built.
func quote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
