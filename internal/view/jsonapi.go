package view

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cast"

	"crudd/internal/crud"
	"crudd/internal/orm"
	"crudd/pkg/types"
)

// View vars read by the JSON:API view.
const (
	// JSONAPIVar holds the *JSONAPIOptions describing the document.
	JSONAPIVar = "_jsonapi"
	// PaginationVar holds a *types.JSONAPIPagination.
	PaginationVar = "_pagination"
)

// JSONAPIRelation describes an association emitted as a relationship.
type JSONAPIRelation struct {
	// Property is the entity field holding the related entity or entities.
	Property string
	// Type is the related resource type.
	Type       string
	PrimaryKey string
	// Included adds the related resources to the `included` member.
	Included bool
}

// JSONAPIOptions describe the document the JSON:API view renders.
type JSONAPIOptions struct {
	Type       string
	PrimaryKey string
	// Data is a *orm.Entity, a *orm.ResultSet or nil for a document
	// without resources.
	Data      any
	Relations []JSONAPIRelation
	// FieldSets limits the attributes per resource type.
	FieldSets   map[string][]string
	Meta        map[string]any
	WithVersion bool
	VersionMeta map[string]any
	URLPrefix   string
	// QueryLog becomes the top-level `query` member when set.
	QueryLog any
}

// JSONAPI renders a JSON:API document.
type JSONAPI struct{}

func (JSONAPI) Render(c *crud.Controller) ([]byte, string, error) {
	v, _ := c.Get(JSONAPIVar)
	opts, _ := v.(*JSONAPIOptions)
	if opts == nil {
		opts = &JSONAPIOptions{PrimaryKey: "id"}
	}
	doc := types.JSONAPIDocument{Meta: map[string]any{}, Query: opts.QueryLog}
	for k, v := range opts.Meta {
		doc.Meta[k] = v
	}
	if opts.WithVersion {
		doc.JSONAPI = map[string]any{"version": types.JSONAPIVersion}
		if len(opts.VersionMeta) > 0 {
			doc.JSONAPI["meta"] = opts.VersionMeta
		}
	}

	b := &documentBuilder{opts: opts, seen: map[string]bool{}}
	switch d := opts.Data.(type) {
	case *orm.Entity:
		if d != nil {
			doc.Data = b.object(opts.Type, opts.PrimaryKey, d, opts.Relations)
		}
	case *orm.ResultSet:
		list := make([]types.JSONAPIObject, 0, d.Len())
		if d != nil {
			for _, e := range d.Items {
				list = append(list, b.object(opts.Type, opts.PrimaryKey, e, opts.Relations))
			}
		}
		doc.Data = list
	}
	doc.Included = b.included

	if p, ok := c.Get(PaginationVar); ok {
		if pg, ok := p.(*types.JSONAPIPagination); ok && pg != nil {
			doc.Links = map[string]any{"self": pg.Self, "first": pg.First, "last": pg.Last}
			doc.Links["prev"] = nullable(pg.Prev)
			doc.Links["next"] = nullable(pg.Next)
			doc.Meta["record_count"] = pg.RecordCount
			doc.Meta["page_count"] = pg.PageCount
			doc.Meta["page_limit"] = pg.PageLimit
		}
	}
	if len(doc.Meta) == 0 {
		doc.Meta = nil
	}

	var (
		out []byte
		err error
	)
	if c.Debug {
		out, err = json.MarshalIndent(doc, "", "    ")
	} else {
		out, err = json.Marshal(doc)
	}
	if err != nil {
		return nil, "", err
	}
	return out, types.JSONAPIMediaType, nil
}

type documentBuilder struct {
	opts     *JSONAPIOptions
	included []types.JSONAPIObject
	seen     map[string]bool
}

func (b *documentBuilder) object(typ, pk string, e *orm.Entity, rels []JSONAPIRelation) types.JSONAPIObject {
	if pk == "" {
		pk = "id"
	}
	obj := types.JSONAPIObject{
		Type:       typ,
		ID:         cast.ToString(e.Get(pk)),
		Attributes: map[string]any{},
	}
	skip := map[string]bool{pk: true}
	for _, r := range rels {
		skip[r.Property] = true
	}
	for _, f := range e.Fields() {
		if skip[f] {
			continue
		}
		switch e.Get(f).(type) {
		case *orm.Entity, []*orm.Entity:
			continue
		}
		obj.Attributes[f] = e.Get(f)
	}
	if fields, ok := b.opts.FieldSets[typ]; ok {
		keep := map[string]bool{}
		for _, f := range fields {
			keep[f] = true
		}
		for k := range obj.Attributes {
			if !keep[k] {
				delete(obj.Attributes, k)
			}
		}
	}
	if len(obj.Attributes) == 0 {
		obj.Attributes = nil
	}
	obj.Links = map[string]string{"self": b.link(typ, obj.ID)}

	for _, r := range rels {
		var data any
		switch rel := e.Get(r.Property).(type) {
		case *orm.Entity:
			if rel == nil {
				continue
			}
			data = &types.JSONAPIIdentifier{Type: r.Type, ID: cast.ToString(rel.Get(keyOf(r)))}
			b.include(r, rel)
		case []*orm.Entity:
			ids := make([]types.JSONAPIIdentifier, 0, len(rel))
			for _, x := range rel {
				ids = append(ids, types.JSONAPIIdentifier{Type: r.Type, ID: cast.ToString(x.Get(keyOf(r)))})
				b.include(r, x)
			}
			data = ids
		default:
			continue
		}
		if obj.Relationships == nil {
			obj.Relationships = map[string]types.JSONAPIRelationship{}
		}
		obj.Relationships[r.Property] = types.JSONAPIRelationship{
			Data:  data,
			Links: map[string]string{"self": b.link(typ, obj.ID) + "/relationships/" + r.Property},
		}
	}
	return obj
}

func (b *documentBuilder) include(r JSONAPIRelation, e *orm.Entity) {
	if !r.Included {
		return
	}
	id := cast.ToString(e.Get(keyOf(r)))
	if b.seen[r.Type+":"+id] {
		return
	}
	b.seen[r.Type+":"+id] = true
	b.included = append(b.included, b.object(r.Type, keyOf(r), e, nil))
}

func (b *documentBuilder) link(typ, id string) string {
	return strings.TrimSuffix(b.opts.URLPrefix, "/") + "/" + typ + "/" + id
}

func keyOf(r JSONAPIRelation) string {
	if r.PrimaryKey == "" {
		return "id"
	}
	return r.PrimaryKey
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
