package orm

import "math"

// Query describes a find against a Table. Zero values mean "no constraint".
type Query struct {
	// Finder names the find method ("all", "list", "search", or a custom
	// finder registered on the table).
	Finder  string
	Options map[string]any

	Where   map[string]any
	Contain []string
	Order   []string

	// Search holds filter arguments for the "search" finder, scoped to a
	// named filter collection.
	Search           map[string]any
	SearchCollection string
	// Like holds case-insensitive substring conditions.
	Like map[string]string

	Page  int
	Limit int

	// List projection columns for the "list" finder.
	KeyField   string
	ValueField string
}

// NewQuery returns a query for the given finder.
func NewQuery(finder string) *Query {
	if finder == "" {
		finder = "all"
	}
	return &Query{Finder: finder, Where: map[string]any{}, Options: map[string]any{}}
}

// AddWhere adds an equality condition.
func (q *Query) AddWhere(field string, v any) *Query {
	if q.Where == nil {
		q.Where = map[string]any{}
	}
	q.Where[field] = v
	return q
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Bounds returns the effective page (1-based) and limit.
func (q *Query) Bounds() (page, limit int) {
	page, limit = q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// Paging is the pagination metadata produced by Paginate.
type Paging struct {
	Page       int  `json:"page"`
	PageCount  int  `json:"page_count"`
	Count      int  `json:"count"`
	TotalCount int  `json:"total_count"`
	Limit      int  `json:"limit"`
	HasNext    bool `json:"has_next_page"`
	HasPrev    bool `json:"has_prev_page"`
	// OutOfRange is set when the requested page exceeds the last page.
	OutOfRange bool `json:"-"`
}

// NewPaging computes metadata for a page of count rows out of total.
func NewPaging(page, limit, count, total int) *Paging {
	pages := int(math.Ceil(float64(total) / float64(limit)))
	if pages < 1 {
		pages = 1
	}
	return &Paging{
		Page:       page,
		PageCount:  pages,
		Count:      count,
		TotalCount: total,
		Limit:      limit,
		HasNext:    page < pages,
		HasPrev:    page > 1,
		OutOfRange: page > pages,
	}
}

// ResultSet is a page of entities plus optional paging metadata.
type ResultSet struct {
	Items  []*Entity
	Paging *Paging
}

func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}

// MarshalJSON encodes the items as a JSON array.
func (r *ResultSet) MarshalJSON() ([]byte, error) {
	if r == nil || r.Items == nil {
		return []byte("[]"), nil
	}
	return marshalEntities(r.Items)
}

// ListItem is one key/value pair of a list projection.
type ListItem struct {
	Key   any `json:"key"`
	Value any `json:"value"`
}

// ListOptions picks the projection columns; empty values fall back to the
// primary key and the display field.
type ListOptions struct {
	KeyField   string
	ValueField string
}

// Project builds a list projection from entities.
func Project(items []*Entity, keyField, valueField string) []ListItem {
	out := make([]ListItem, 0, len(items))
	for _, e := range items {
		out = append(out, ListItem{Key: e.Get(keyField), Value: e.Get(valueField)})
	}
	return out
}
