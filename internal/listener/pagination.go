package listener

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"crudd/internal/confstore"
	"crudd/internal/crud"
	"crudd/internal/event"
	"crudd/internal/orm"
	"crudd/internal/view"
	"crudd/pkg/types"
)

// APIPagination publishes paging metadata for paginated API responses:
// a `pagination` view var, a Link header and, for JSON:API requests, the
// top-level links.
type APIPagination struct {
	Base
	absolute bool
}

// NewAPIPagination builds an ApiPagination listener. Option
// absoluteLinks makes the links absolute.
func NewAPIPagination(c *crud.Crud, opts *confstore.Store) (*APIPagination, error) {
	l := &APIPagination{Base: newBase(c, map[string]any{"absoluteLinks": false}, opts)}
	l.absolute = l.opts.Bool("absoluteLinks")
	return l, nil
}

func (l *APIPagination) Implemented() []crud.Subscription {
	ensureAPIDetectors(l.request())
	if !l.request().Is("api") {
		return nil
	}
	return []crud.Subscription{
		{Kind: event.BeforeRender, Priority: event.PriorityDomain, Handler: l.beforeRender},
	}
}

func (l *APIPagination) beforeRender(_ *event.Event[*crud.Subject]) error {
	a, err := l.action()
	if err != nil {
		return err
	}
	ctrl := l.controller()
	v, _ := ctrl.Get(a.ViewVar())
	rs, ok := v.(*orm.ResultSet)
	if !ok || rs == nil || rs.Paging == nil {
		return nil
	}
	p := rs.Paging
	ctrl.Set("pagination", types.Pagination{
		PageCount:   p.PageCount,
		CurrentPage: p.Page,
		HasNextPage: p.HasNext,
		HasPrevPage: p.HasPrev,
		Count:       p.Count,
		TotalCount:  p.TotalCount,
		Limit:       p.Limit,
	})
	a.SetConfig(crud.ActionConfig{Serialize: appendUnique(a.Config().Serialize, "pagination")})

	links := l.links(p)
	if h := linkHeader(links); h != "" {
		ctrl.Response.Header.Set("Link", h)
	}
	if l.request().Is("jsonapi") {
		ctrl.Set(view.PaginationVar, &types.JSONAPIPagination{
			Self:        links["self"],
			First:       links["first"],
			Last:        links["last"],
			Prev:        links["prev"],
			Next:        links["next"],
			RecordCount: p.TotalCount,
			PageCount:   p.PageCount,
			PageLimit:   p.Limit,
		})
	}
	return nil
}

// links returns the page URLs keyed by relation.
func (l *APIPagination) links(p *orm.Paging) map[string]string {
	last := p.PageCount
	if last < 1 {
		last = 1
	}
	out := map[string]string{
		"self":  l.pageURL(p.Page),
		"first": l.pageURL(1),
		"last":  l.pageURL(last),
	}
	if p.HasPrev {
		out["prev"] = l.pageURL(p.Page - 1)
	}
	if p.HasNext {
		out["next"] = l.pageURL(p.Page + 1)
	}
	return out
}

func (l *APIPagination) pageURL(page int) string {
	req := l.request()
	q := url.Values{}
	for k, v := range req.QueryValues {
		q[k] = append([]string(nil), v...)
	}
	q.Set("page", strconv.Itoa(page))
	u := req.Path + "?" + q.Encode()
	if l.absolute {
		u = req.BaseURL() + u
	}
	return u
}

func linkHeader(links map[string]string) string {
	var parts []string
	for _, rel := range []string{"first", "prev", "next", "last"} {
		if u, ok := links[rel]; ok {
			parts = append(parts, fmt.Sprintf("<%s>; rel=%q", u, rel))
		}
	}
	return strings.Join(parts, ", ")
}
