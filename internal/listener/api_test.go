package listener

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudd/internal/crud"
)

func TestAPIAddRendersCreatedID(t *testing.T) {
	f := newFixture(t, http.MethodPost, "application/json")
	f.req.Body = map[string]any{"name": "Hello World"}
	f.listen(t, "api", KindAPI, nil)

	resp, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "application/json; charset=utf-8", resp.ContentType)
	assert.JSONEq(t, `{"success":true,"data":{"id":4}}`, string(resp.Body))
	assert.Empty(t, f.flash.Messages(""), "API requests swallow flash messages")
	assert.Equal(t, 4, f.blogs.Len())
}

func TestAPIFlashCanBeEnabled(t *testing.T) {
	f := newFixture(t, http.MethodPost, "application/json")
	f.req.Body = map[string]any{"name": "Hello World"}
	f.listen(t, "api", KindAPI, map[string]any{"setFlash": true})

	_, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	require.Len(t, f.flash.Messages("flash"), 1)
	assert.Equal(t, "Successfully created blog", f.flash.Messages("flash")[0].Text)
}

func TestAPIRejectsDisallowedMethod(t *testing.T) {
	f := newFixture(t, http.MethodGet, "application/json")
	f.listen(t, "api", KindAPI, nil)

	_, err := f.crud.Execute("add", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, crud.StatusCode(err))
	assert.True(t, errors.Is(err, crud.ErrMethodNotAllowed))
	assert.Contains(t, err.Error(), "PUT, POST")
}

func TestAPIValidationFailureRaises(t *testing.T) {
	f := newFixture(t, http.MethodPost, "application/json")
	f.req.Body = map[string]any{"name": "short"}
	f.listen(t, "api", KindAPI, nil)

	_, err := f.crud.Execute("add", nil)
	require.Error(t, err)
	assert.True(t, crud.IsValidation(err))
	assert.Equal(t, http.StatusUnprocessableEntity, crud.StatusCode(err))
	assert.Equal(t, "A validation error occurred", err.Error())
	assert.Equal(t, 3, f.blogs.Len())
}

func TestAPIIgnoresHTMLRequests(t *testing.T) {
	f := newFixture(t, http.MethodPost, "text/html")
	f.req.Body = map[string]any{"name": "Hello World"}
	f.listen(t, "api", KindAPI, nil)

	resp, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/blogs", resp.Location())
	require.Len(t, f.flash.Messages("flash"), 1)
}

func TestAPIDataRules(t *testing.T) {
	f := newFixture(t, http.MethodPost, "application/json")
	require.NoError(t, f.crud.MapAction("add", crud.KindAdd, crud.ActionConfig{
		API: crud.APIConfig{Success: crud.APIResult{Data: crud.DataRules{
			Subject: []crud.PathRule{{Key: "created"}},
			Entity:  []crud.PathRule{{Key: "id"}, {Key: "title", Value: "name"}},
			Raw:     map[string]any{"{action}_done": true},
		}}},
	}, true))
	f.req.Body = map[string]any{"name": "Hello World"}
	f.listen(t, "api", KindAPI, nil)

	resp, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.JSONEq(t,
		`{"success":true,"data":{"created":true,"id":4,"title":"Hello World","add_done":true}}`,
		string(resp.Body))
}

func TestAPIDeleteAndCustomException(t *testing.T) {
	f := newFixture(t, http.MethodDelete, "application/json")
	f.listen(t, "api", KindAPI, nil)

	resp, err := f.crud.Execute("delete", []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"success":true,"data":{}}`, string(resp.Body))

	f = newFixture(t, http.MethodDelete, "application/json")
	require.NoError(t, f.crud.MapAction("delete", crud.KindDelete, crud.ActionConfig{
		API: crud.APIConfig{Success: crud.APIResult{Exception: &crud.APIException{Message: "Gone fishing", Code: http.StatusTeapot}}},
	}, true))
	f.listen(t, "api", KindAPI, nil)
	_, err = f.crud.Execute("delete", []string{"1"})
	require.Error(t, err)
	assert.Equal(t, http.StatusTeapot, crud.StatusCode(err))
	assert.Equal(t, "Gone fishing", err.Error())
}

func TestAPIIndexAsXML(t *testing.T) {
	f := newFixture(t, http.MethodGet, "application/xml")
	f.listen(t, "api", KindAPI, nil)

	resp, err := f.crud.Execute("index", nil)
	require.NoError(t, err)
	assert.Equal(t, "application/xml; charset=utf-8", resp.ContentType)
	assert.Contains(t, string(resp.Body), "<response>")
	assert.Contains(t, string(resp.Body), "2nd post")
}

func TestAPIExtensionDetector(t *testing.T) {
	f := newFixture(t, http.MethodGet, "")
	f.req.Ext = "json"
	f.listen(t, "api", KindAPI, nil)

	resp, err := f.crud.Execute("view", []string{"2"})
	require.NoError(t, err)
	assert.Equal(t, "application/json; charset=utf-8", resp.ContentType)
	assert.Contains(t, string(resp.Body), `"name":"2nd post"`)

	l, err := f.crud.Listener("api")
	require.NoError(t, err)
	assert.Equal(t, "Json", l.(*API).ViewClass("json"))
}
