package crud

import (
	"net/http"
	"strconv"
	"strings"

	"crudd/internal/event"
	"crudd/internal/orm"
)

// IndexAction paginates the table.
type IndexAction struct{ *BaseAction }

// DefaultIndexConfig is the Index action's baseline configuration.
func DefaultIndexConfig() ActionConfig {
	return ActionConfig{
		Scope:      ScopeTable,
		FindMethod: "all",
		API: APIConfig{
			Success: APIResult{Code: http.StatusOK},
			Error:   APIResult{Code: http.StatusBadRequest},
		},
	}
}

// NewIndexAction builds an Index action.
func NewIndexAction(c *Crud, name string, cfg ActionConfig) Action {
	a := &IndexAction{NewBaseAction(c, name, KindIndex, DefaultIndexConfig().Merge(cfg))}
	a.On("", a.handle)
	return a
}

func (a *IndexAction) handle([]string) (*Response, error) {
	t, err := a.Table()
	if err != nil {
		return nil, err
	}
	s := a.Subject()
	s.SetSuccess(true)
	s.Query = a.pagedQuery(t, a.FindMethod())
	if _, err := a.Trigger(event.BeforePaginate, s); err != nil {
		return nil, err
	}
	rs, err := t.Paginate(a.Context(), s.Query)
	if err != nil {
		return nil, err
	}
	if rs.Paging != nil && rs.Paging.OutOfRange {
		return a.lastPage(rs.Paging.PageCount), nil
	}
	s.Entities = rs
	if _, err := a.Trigger(event.AfterPaginate, s); err != nil {
		return nil, err
	}
	if _, err := a.Trigger(event.BeforeRender, s); err != nil {
		return nil, err
	}
	return nil, nil
}

// lastPage redirects to the same listing at the last existing page.
func (a *IndexAction) lastPage(page int) *Response {
	q := map[string]string{}
	for k, v := range a.Request().QueryValues {
		if len(v) > 0 {
			q[k] = v[0]
		}
	}
	q["page"] = strconv.Itoa(page)
	u := &URL{Controller: a.Controller().Name, Action: a.name, Query: q}
	return a.Controller().Redirect(a.Controller().URL(u), http.StatusFound)
}

// ListAction returns every row without pagination.
type ListAction struct{ *BaseAction }

// DefaultListConfig is the List action's baseline configuration.
func DefaultListConfig() ActionConfig {
	return ActionConfig{Scope: ScopeTable, FindMethod: "all"}
}

// NewListAction builds a List action.
func NewListAction(c *Crud, name string, cfg ActionConfig) Action {
	a := &ListAction{NewBaseAction(c, name, KindList, DefaultListConfig().Merge(cfg))}
	a.On("", a.handle)
	return a
}

func (a *ListAction) handle([]string) (*Response, error) {
	t, err := a.Table()
	if err != nil {
		return nil, err
	}
	s := a.Subject()
	s.Query = a.query(a.FindMethod())
	items, err := t.Find(a.Context(), s.Query)
	if err != nil {
		return nil, err
	}
	s.Entities = &orm.ResultSet{Items: items}
	s.SetSuccess(true)
	if _, err := a.Trigger(event.BeforeRender, s); err != nil {
		return nil, err
	}
	return nil, nil
}

// LookupAction returns a paginated key/value projection, e.g. for
// autocomplete widgets.
type LookupAction struct{ *BaseAction }

// DefaultLookupConfig is the Lookup action's baseline configuration.
func DefaultLookupConfig() ActionConfig {
	return ActionConfig{Scope: ScopeTable, FindMethod: "list", EntityKey: "list"}
}

// NewLookupAction builds a Lookup action.
func NewLookupAction(c *Crud, name string, cfg ActionConfig) Action {
	a := &LookupAction{NewBaseAction(c, name, KindLookup, DefaultLookupConfig().Merge(cfg))}
	a.On("", a.handle)
	return a
}

func (a *LookupAction) handle([]string) (*Response, error) {
	t, err := a.Table()
	if err != nil {
		return nil, err
	}
	q := a.pagedQuery(t, a.FindMethod())
	a.projection(t.Schema(), q)

	s := a.Subject()
	s.SetSuccess(true)
	s.Query = q
	if _, err := a.Trigger(event.BeforeLookup, s); err != nil {
		return nil, err
	}
	rs, err := t.Paginate(a.Context(), s.Query)
	if err != nil {
		return nil, err
	}
	key, value := s.Query.KeyField, s.Query.ValueField
	if key == "" {
		key = t.Schema().PrimaryKey
	}
	if value == "" {
		value = t.Schema().DisplayField
	}
	s.Entities = rs
	s.List = orm.Project(rs.Items, key, value)
	if _, err := a.Trigger(event.AfterLookup, s); err != nil {
		return nil, err
	}
	if _, err := a.Trigger(event.BeforeRender, s); err != nil {
		return nil, err
	}
	return nil, nil
}

// projection picks the key and value columns from the find config, then
// from the key_field/id and value_field/value query parameters when they
// name real columns.
func (a *LookupAction) projection(s *orm.Schema, q *orm.Query) {
	q.KeyField = a.cfg.FindConfig["keyField"]
	q.ValueField = a.cfg.FindConfig["valueField"]
	req := a.Request()
	for _, p := range []string{"key_field", "id"} {
		if v := req.Query(p); v != "" && s.HasColumn(v) {
			q.KeyField = v
		}
	}
	for _, p := range []string{"value_field", "value"} {
		if v := req.Query(p); v != "" && s.HasColumn(v) {
			q.ValueField = v
		}
	}
}

// query builds a find for finder with the configured find options.
func (a *BaseAction) query(finder string) *orm.Query {
	q := orm.NewQuery(finder)
	for k, v := range a.cfg.FindOptions {
		q.Options[k] = v
	}
	return q
}

// pagedQuery applies the page, limit, sort and direction query
// parameters. Sorting by an unknown column is ignored.
func (a *BaseAction) pagedQuery(t orm.Table, finder string) *orm.Query {
	q := a.query(finder)
	req := a.Request()
	if p, err := strconv.Atoi(req.Query("page")); err == nil {
		q.Page = p
	}
	if l, err := strconv.Atoi(req.Query("limit")); err == nil {
		q.Limit = l
	}
	if sort := req.Query("sort"); sort != "" && t.Schema().HasColumn(sort) {
		dir := "ASC"
		if strings.EqualFold(req.Query("direction"), "desc") {
			dir = "DESC"
		}
		q.Order = []string{sort + " " + dir}
	}
	return q
}
