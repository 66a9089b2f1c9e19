package view

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"crudd/internal/crud"
	"crudd/internal/orm"
	"crudd/pkg/types"
)

func blog(id int, name string) *orm.Entity {
	return orm.Hydrate("Blogs", map[string]any{"id": id, "name": name})
}

func TestJSONSerializeOrder(t *testing.T) {
	c := crud.NewController("Blogs", nil)
	c.Set("success", true)
	c.Set("blog", blog(1, "First"))
	c.Set("hidden", "x")
	c.SetSerialize([]crud.SerializeEntry{{Key: "success", Var: "success"}, {Key: "data", Var: "blog"}, {Key: "missing", Var: "missing"}})

	body, ct, err := JSON{}.Render(c)
	require.NoError(t, err)
	assert.Equal(t, "application/json; charset=utf-8", ct)
	assert.Equal(t, `{"success":true,"data":{"id":1,"name":"First"}}`, string(body))
}

func TestJSONWithoutSerializeUsesPublicVars(t *testing.T) {
	c := crud.NewController("Blogs", nil)
	c.Set("b", 2)
	c.Set("a.b", 1)
	c.Set("_private", 3)
	c.Set("viewVar", "b")

	body, _, err := JSON{}.Render(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a.b":1,"b":2}`, string(body))
}

func TestXMLRepeatsListElements(t *testing.T) {
	c := crud.NewController("Blogs", nil)
	c.Set("success", true)
	c.Set("blogs", &orm.ResultSet{Items: []*orm.Entity{blog(1, "a"), blog(2, "b")}})
	c.SetSerialize(crud.SerializeVars("success", "blogs"))

	body, ct, err := XML{}.Render(c)
	require.NoError(t, err)
	assert.Equal(t, "application/xml; charset=utf-8", ct)
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"+
		`<response><success>true</success><blogs><id>1</id><name>a</name></blogs><blogs><id>2</id><name>b</name></blogs></response>`,
		string(body))
}

func TestElementName(t *testing.T) {
	assert.Equal(t, "item", elementName(""))
	assert.Equal(t, "_1st", elementName("1st"))
	assert.Equal(t, "a_b", elementName("a b"))
}

func TestJSONAPIDocument(t *testing.T) {
	post := orm.Hydrate("Blogs", map[string]any{"id": 3, "name": "Hello", "body": "text"})
	post.Set("user", orm.Hydrate("Users", map[string]any{"id": 7, "name": "ada"}))

	c := crud.NewController("Blogs", nil)
	c.Set(JSONAPIVar, &JSONAPIOptions{
		Type:        "blogs",
		PrimaryKey:  "id",
		Data:        &orm.ResultSet{Items: []*orm.Entity{post}},
		Relations:   []JSONAPIRelation{{Property: "user", Type: "users", Included: true}},
		FieldSets:   map[string][]string{"blogs": {"name"}},
		WithVersion: true,
		URLPrefix:   "http://example.com/api/",
	})
	c.Set(PaginationVar, &types.JSONAPIPagination{Self: "/blogs?page=1", First: "/blogs?page=1", Last: "/blogs?page=2", Next: "/blogs?page=2", RecordCount: 21, PageCount: 2, PageLimit: 20})

	body, ct, err := JSONAPI{}.Render(c)
	require.NoError(t, err)
	assert.Equal(t, types.JSONAPIMediaType, ct)

	doc := gjson.ParseBytes(body)
	assert.Equal(t, "1.0", doc.Get("jsonapi.version").String())
	assert.Equal(t, "3", doc.Get("data.0.id").String())
	assert.Equal(t, `{"name":"Hello"}`, doc.Get("data.0.attributes").Raw)
	assert.Equal(t, "http://example.com/api/blogs/3", doc.Get("data.0.links.self").String())
	assert.Equal(t, `{"type":"users","id":"7"}`, doc.Get("data.0.relationships.user.data").Raw)
	assert.Equal(t, "ada", doc.Get("included.0.attributes.name").String())
	assert.Equal(t, "/blogs?page=2", doc.Get("links.next").String())
	assert.Equal(t, gjson.Null, doc.Get("links.prev").Type)
	assert.Equal(t, int64(21), doc.Get("meta.record_count").Int())
}

func TestJSONAPIWithoutResources(t *testing.T) {
	c := crud.NewController("Blogs", nil)
	c.Set(JSONAPIVar, &JSONAPIOptions{Meta: map[string]any{"copyright": "crudd"}})
	body, _, err := JSONAPI{}.Render(c)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, map[string]any{"meta": map[string]any{"copyright": "crudd"}}, doc)
}

func TestHTMLPage(t *testing.T) {
	flash := &crud.FlashBag{}
	flash.Set(crud.FlashMessage{Text: "Could not create blog", Params: map[string]any{"class": "message error"}, Key: "flash"})
	c := crud.NewController("BlogPosts", nil, crud.WithFlash(flash))
	c.SetTemplate("add")

	e := orm.NewEntity("BlogPosts", map[string]any{"name": "<b>x</b>"})
	e.SetError("name", "minLength", "Name is too short")
	c.Set("blogPost", e)
	c.Set("users", []orm.ListItem{{Key: 1, Value: "ada"}})

	body, ct, err := NewHTML().Render(c)
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", ct)
	html := string(body)
	assert.Contains(t, html, "<title>Blog Posts add</title>")
	assert.Contains(t, html, `<div class="message error">Could not create blog</div>`)
	assert.Contains(t, html, "&lt;b&gt;x&lt;/b&gt;")
	assert.Contains(t, html, `<span class="error">Name is too short</span>`)
	assert.Contains(t, html, `<li data-key="1">ada</li>`)
}

func TestRegister(t *testing.T) {
	Register()
	for _, name := range []string{"Json", "Xml", "JsonApi", crud.DefaultViewClass} {
		_, ok := crud.LookupView(name)
		assert.True(t, ok, name)
	}
}
