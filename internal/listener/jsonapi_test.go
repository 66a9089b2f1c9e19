package listener

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"crudd/internal/crud"
	"crudd/internal/orm"
	"crudd/pkg/types"
)

func newJSONAPIFixture(t *testing.T, method string, opts map[string]any) *fixture {
	t.Helper()
	f := newFixture(t, method, types.JSONAPIMediaType)
	f.listen(t, "jsonapi", KindJSONAPI, opts)
	return f
}

func TestJSONAPIRequestChecks(t *testing.T) {
	f := newFixture(t, http.MethodGet, "application/json")
	f.listen(t, "jsonapi", KindJSONAPI, nil)
	_, err := f.crud.Execute("index", nil)
	require.Error(t, err)
	assert.True(t, crud.IsBadRequest(err))
	assert.Contains(t, err.Error(), "Accept header")

	f = newJSONAPIFixture(t, http.MethodPut, nil)
	_, err = f.crud.Execute("edit", []string{"1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use PATCH instead")

	f = newJSONAPIFixture(t, http.MethodPost, nil)
	f.req.Header.Set("Content-Type", "application/json")
	f.req.Body = map[string]any{"data": map[string]any{"type": "blogs"}}
	_, err = f.crud.Execute("add", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Content-Type header")
}

func TestJSONAPIOptionValidation(t *testing.T) {
	f := newFixture(t, http.MethodGet, types.JSONAPIMediaType)
	err := f.crud.AddListener("jsonapi", KindJSONAPI, map[string]any{"withJsonApiVersion": "yes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only accepts a boolean or a map")

	require.NoError(t, f.crud.AddListener("jsonapi", KindJSONAPI, map[string]any{
		"withJsonApiVersion": map[string]any{"schema": "v1"},
		"urlPrefix":          "/api",
	}))
	l, err := f.crud.Listener("jsonapi")
	require.NoError(t, err)
	assert.Equal(t, "/api", l.(*JSONAPI).Settings().URLPrefix)
	assert.Equal(t, "JsonApi", l.(*JSONAPI).ViewClass("jsonapi"))
}

func TestJSONAPIDocumentValidation(t *testing.T) {
	f := newJSONAPIFixture(t, http.MethodPost, map[string]any{"docValidatorAboutLinks": true})
	f.req.Header.Set("Content-Type", types.JSONAPIMediaType)
	f.req.Body = map[string]any{"data": map[string]any{"id": "nope", "attributes": map[string]any{"name": "Hello World"}}}

	_, err := f.crud.Execute("add", nil)
	require.Error(t, err)
	var de *DocumentError
	require.True(t, errors.As(err, &de))
	assert.True(t, crud.IsValidation(err))
	assert.Equal(t, http.StatusUnprocessableEntity, crud.StatusCode(err))
	assert.Equal(t, "2 validation errors occurred", err.Error())

	var got []string
	for _, e := range de.Errors {
		got = append(got, e.Title+" "+e.Source.Pointer)
	}
	if diff := cmp.Diff([]string{"_required /data", "_notUuid /data/id"}, got); diff != "" {
		t.Errorf("document errors mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "http://jsonapi.org/format/#crud-creating", de.Errors[0].Links["about"])
	assert.Equal(t, 3, f.blogs.Len())
}

func TestDocumentValidatorRules(t *testing.T) {
	v, err := newDocumentValidator(map[string]any{"meta": map[string]any{}}, false)
	require.NoError(t, err)
	err = v.ValidateCreate()
	var de *DocumentError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "A validation error occurred", de.Error())
	assert.Equal(t, "", de.Errors[0].Source.Pointer)
	assert.Nil(t, de.Errors[0].Links)

	v, err = newDocumentValidator(map[string]any{"data": map[string]any{"type": "blogs", "id": 5}}, false)
	require.NoError(t, err)
	err = v.ValidateUpdate()
	require.True(t, errors.As(err, &de))
	require.Len(t, de.Errors, 1)
	assert.Equal(t, "_notString", de.Errors[0].Title)
	assert.Equal(t, "/data/id", de.Errors[0].Source.Pointer)

	v, err = newDocumentValidator(map[string]any{"data": map[string]any{
		"type": "blogs",
		"id":   "1",
		"relationships": map[string]any{
			"user": map[string]any{"data": map[string]any{"type": "users"}},
			"tags": map[string]any{"data": []any{map[string]any{"type": "tags", "id": 3}}},
		},
	}}, false)
	require.NoError(t, err)
	err = v.ValidateUpdate()
	require.True(t, errors.As(err, &de))
	var pointers []string
	for _, e := range de.Errors {
		pointers = append(pointers, e.Title+" "+e.Source.Pointer)
	}
	assert.ElementsMatch(t, []string{
		"_required /data/relationships/user/data",
		"_notString /data/relationships/tags/data/0/id",
	}, pointers)

	v, err = newDocumentValidator(map[string]any{"data": map[string]any{
		"type": "blogs",
		"id":   "0d8c0a4e-6a38-4a7b-9d32-3a3a8d6c0f11",
	}}, false)
	require.NoError(t, err)
	assert.NoError(t, v.ValidateCreate())
}

func TestFlattenDocument(t *testing.T) {
	got := flattenDocument(map[string]any{"data": map[string]any{
		"type":       "blogs",
		"id":         "7",
		"attributes": map[string]any{"name": "Hello World", "body": "text"},
		"relationships": map[string]any{
			"user": map[string]any{"data": map[string]any{"type": "users", "id": "1"}},
			"tags": map[string]any{"data": nil},
		},
	}})
	want := map[string]any{"id": "7", "name": "Hello World", "body": "text", "user_id": "1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("flattened data mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONAPIAddCreatesResource(t *testing.T) {
	f := newJSONAPIFixture(t, http.MethodPost, map[string]any{"withJsonApiVersion": true})
	f.req.Header.Set("Content-Type", types.JSONAPIMediaType)
	f.req.Body = map[string]any{"data": map[string]any{
		"type":       "blogs",
		"attributes": map[string]any{"name": "Hello World", "body": "first"},
		"relationships": map[string]any{
			"user": map[string]any{"data": map[string]any{"type": "users", "id": "2"}},
		},
	}}

	resp, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, types.JSONAPIMediaType, resp.ContentType)
	assert.Equal(t, "/blogs/4", resp.Header.Get("Location"))

	doc := gjson.ParseBytes(resp.Body)
	assert.Equal(t, "1.0", doc.Get("jsonapi.version").String())
	assert.Equal(t, "blogs", doc.Get("data.type").String())
	assert.Equal(t, "4", doc.Get("data.id").String())
	assert.Equal(t, "Hello World", doc.Get("data.attributes.name").String())
	assert.False(t, doc.Get("data.attributes.user_id").Exists(), "foreign keys move to relationships")
	assert.Equal(t, "users", doc.Get("data.relationships.user.data.type").String())
	assert.Equal(t, "2", doc.Get("data.relationships.user.data.id").String())
	assert.Equal(t, "/blogs/4", doc.Get("data.links.self").String())
	assert.Empty(t, f.flash.Messages(""))
}

func TestJSONAPIEditLeavesLocationUnset(t *testing.T) {
	f := newJSONAPIFixture(t, http.MethodPatch, nil)
	f.req.Header.Set("Content-Type", types.JSONAPIMediaType)
	f.req.Body = map[string]any{"data": map[string]any{
		"type":       "blogs",
		"id":         "1",
		"attributes": map[string]any{"name": "Renamed first post"},
	}}

	resp, err := f.crud.Execute("edit", []string{"1"})
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get("Location"))
	assert.Empty(t, f.ctrl.Response.Header.Get("Location"))

	e, err := f.blogs.First(context.Background(), orm.NewQuery("all").AddWhere("id", 1))
	require.NoError(t, err)
	assert.Equal(t, "Renamed first post", e.Get("name"))
}

func TestJSONAPIViewAndDelete(t *testing.T) {
	f := newJSONAPIFixture(t, http.MethodGet, map[string]any{
		"fieldSets": map[string]any{"blogs": []any{"name"}},
		"urlPrefix": "/api/",
	})
	resp, err := f.crud.Execute("view", []string{"2"})
	require.NoError(t, err)
	doc := gjson.ParseBytes(resp.Body)
	assert.Equal(t, "2nd post", doc.Get("data.attributes.name").String())
	assert.False(t, doc.Get("data.attributes.body").Exists())
	assert.Equal(t, "/api/blogs/2", doc.Get("data.links.self").String())
	assert.False(t, doc.Get("jsonapi").Exists())

	f = newJSONAPIFixture(t, http.MethodDelete, nil)
	resp, err = f.crud.Execute("delete", []string{"2"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	assert.Empty(t, resp.Body)
	assert.Equal(t, 2, f.blogs.Len())
}

func TestJSONAPIIndexWithPagination(t *testing.T) {
	f := newJSONAPIFixture(t, http.MethodGet, nil)
	f.req.QueryValues.Set("limit", "2")
	f.listen(t, "pagination", KindAPIPagination, nil)

	resp, err := f.crud.Execute("index", nil)
	require.NoError(t, err)
	doc := gjson.ParseBytes(resp.Body)
	assert.Len(t, doc.Get("data").Array(), 2)
	assert.Equal(t, "/blogs?limit=2&page=1", doc.Get("links.self").String())
	assert.Equal(t, "/blogs?limit=2&page=2", doc.Get("links.next").String())
	assert.Equal(t, gjson.Null, doc.Get("links.prev").Type)
	assert.Equal(t, int64(3), doc.Get("meta.record_count").Int())
	assert.Equal(t, int64(2), doc.Get("meta.page_count").Int())
}
