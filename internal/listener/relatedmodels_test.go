package listener

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudd/internal/crud"
	"crudd/internal/event"
	"crudd/internal/orm"
)

func TestRelatedModelsPublishesLists(t *testing.T) {
	f := newFixture(t, http.MethodGet, "")
	f.listen(t, "related", KindRelatedModels, nil)

	var seen []string
	f.crud.On(event.RelatedModel, func(e *event.Event[*crud.Subject]) error {
		s := e.Subject()
		seen = append(seen, s.Name+":"+s.ViewVar)
		assert.Equal(t, "Users", s.Table.Alias())
		require.NotNil(t, s.Association)
		assert.Equal(t, "user_id", s.Association.ForeignKey)
		s.Query.AddWhere("name", "grace")
		return nil
	})

	resp, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []string{"Users:users"}, seen)

	v, ok := f.ctrl.Get("users")
	require.True(t, ok)
	assert.Equal(t, []orm.ListItem{{Key: int64(2), Value: "grace"}}, v)
	assert.Contains(t, string(resp.Body), `<li data-key="2">grace</li>`)
}

func TestRelatedModelsKeepsExistingViewVar(t *testing.T) {
	f := newFixture(t, http.MethodGet, "")
	f.listen(t, "related", KindRelatedModels, nil)
	f.ctrl.Set("users", []orm.ListItem{{Key: 9, Value: "preset"}})

	_, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	v, _ := f.ctrl.Get("users")
	assert.Equal(t, []orm.ListItem{{Key: 9, Value: "preset"}}, v)
}

func TestRelatedModelsContainsOnIndex(t *testing.T) {
	f := newFixture(t, http.MethodGet, "")
	require.NoError(t, f.crud.MapAction("index", crud.KindIndex, crud.ActionConfig{
		RelatedModels: &crud.Related{Enabled: true, Names: []string{"Users"}},
	}, true))
	f.listen(t, "related", KindRelatedModels, nil)

	_, err := f.crud.Execute("index", nil)
	require.NoError(t, err)
	v, _ := f.ctrl.Get("blogs")
	rs := v.(*orm.ResultSet)
	require.Equal(t, 3, rs.Len())
	user, ok := rs.Items[1].Get("user").(*orm.Entity)
	require.True(t, ok)
	assert.Equal(t, "grace", user.Get("name"))
}

func TestRelatedModelsUnknownAssociation(t *testing.T) {
	f := newFixture(t, http.MethodGet, "")
	require.NoError(t, f.crud.MapAction("add", crud.KindAdd, crud.ActionConfig{
		RelatedModels: &crud.Related{Enabled: true, Names: []string{"Tags"}},
	}, true))
	f.listen(t, "related", KindRelatedModels, nil)

	_, err := f.crud.Execute("add", nil)
	require.Error(t, err)
	assert.Equal(t, `Table "Blogs" is not associated with "Tags"`, err.Error())
}

func TestRelatedModelsDisabled(t *testing.T) {
	f := newFixture(t, http.MethodGet, "")
	require.NoError(t, f.crud.MapAction("add", crud.KindAdd, crud.ActionConfig{
		RelatedModels: &crud.Related{Enabled: false},
	}, true))
	f.listen(t, "related", KindRelatedModels, nil)

	_, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	_, ok := f.ctrl.Get("users")
	assert.False(t, ok)
}

func TestSearchFiltersIndex(t *testing.T) {
	f := newFixture(t, http.MethodGet, "")
	f.req.QueryValues.Set("name", "2nd")
	f.req.QueryValues.Set("page", "1")
	f.listen(t, "search", KindSearch, nil)

	_, err := f.crud.Execute("index", nil)
	require.NoError(t, err)
	v, _ := f.ctrl.Get("blogs")
	rs := v.(*orm.ResultSet)
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, "2nd post", rs.Items[0].Get("name"))
}

func TestSearchFiltersLookup(t *testing.T) {
	f := newFixture(t, http.MethodGet, "")
	f.req.QueryValues.Set("user_id", "1")
	f.listen(t, "search", KindSearch, map[string]any{"enabled": []any{"Crud.beforeLookup"}})

	_, err := f.crud.Execute("lookup", nil)
	require.NoError(t, err)
	v, _ := f.ctrl.Get("blogs")
	assert.Len(t, v, 2)
}

func TestSearchRequiresBehavior(t *testing.T) {
	f := newFixture(t, http.MethodGet, "", withBehaviors())
	f.listen(t, "search", KindSearch, nil)

	_, err := f.crud.Execute("index", nil)
	require.Error(t, err)
	assert.Equal(t, "missing Search behavior on Blogs", err.Error())
}
