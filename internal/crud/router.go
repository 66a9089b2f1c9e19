package crud

import (
	"net/url"
	"strings"

	"crudd/internal/common/inflect"
)

// URL is a route description. Raw, when set, is used verbatim.
type URL struct {
	Controller string
	Action     string
	Pass       []string
	Query      map[string]string
	Raw        string
}

// Router turns route descriptions into paths.
type Router interface {
	URL(u *URL) string
}

// PathRouter renders "/<prefix>/<controller>/<action>/<pass...>?<query>".
// The index action renders as the bare controller path.
type PathRouter struct {
	Prefix string
	// Base, when set, makes rendered URLs absolute.
	Base string
}

func (r PathRouter) URL(u *URL) string {
	if u == nil {
		return r.Base + r.Prefix + "/"
	}
	if u.Raw != "" {
		return u.Raw
	}
	segs := []string{strings.TrimSuffix(r.Prefix, "/"), inflect.Underscore(u.Controller)}
	if u.Action != "" && u.Action != "index" {
		segs = append(segs, u.Action)
	} else if len(u.Pass) > 0 {
		segs = append(segs, "index")
	}
	for _, p := range u.Pass {
		segs = append(segs, url.PathEscape(p))
	}
	out := r.Base + strings.Join(segs, "/")
	if len(u.Query) > 0 {
		q := url.Values{}
		for k, v := range u.Query {
			q.Set(k, v)
		}
		out += "?" + q.Encode()
	}
	return out
}
