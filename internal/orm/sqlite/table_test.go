package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudd/internal/orm"
)

func openTest(t *testing.T) *Table {
	t.Helper()
	db, err := Open("file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	tbl, err := New(context.Background(), db, &orm.Schema{
		Name: "Blogs",
		Columns: []orm.Column{
			{Name: "name"}, {Name: "body", Type: orm.TypeText}, {Name: "published", Type: orm.TypeBoolean},
		},
		Rules: map[string]orm.Rules{"name": {Required: true, MinLength: 10}},
	}, nil)
	require.NoError(t, err)
	return tbl
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	tbl := openTest(t)

	log := &orm.QueryLog{}
	lctx := orm.WithQueryLogger(ctx, log)

	e := tbl.NewEntity(map[string]any{"name": "Hello World", "body": "Pretty hot body", "published": "1"})
	ok, err := tbl.Save(lctx, e, orm.SaveOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), e.Get("id"))
	require.Equal(t, 1, log.Len())
	assert.Contains(t, log.Entries()["default"][0].Query, `INSERT INTO "blogs"`)

	got, err := tbl.First(ctx, orm.NewQuery("all").AddWhere("id", 1))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Pretty hot body", got.Get("body"))
	assert.Equal(t, true, got.Get("published"))

	tbl.PatchEntity(got, map[string]any{"body": "cooler"})
	ok, err = tbl.Save(ctx, got, orm.SaveOptions{})
	require.NoError(t, err)
	assert.True(t, ok)

	rs, err := tbl.Paginate(ctx, &orm.Query{Finder: "search", Search: map[string]any{"body": "COOL"}})
	require.NoError(t, err)
	require.Len(t, rs.Items, 1)
	assert.Equal(t, 1, rs.Paging.TotalCount)

	ok, err = tbl.Delete(ctx, got)
	require.NoError(t, err)
	assert.True(t, ok)
	missing, err := tbl.First(ctx, orm.NewQuery("all").AddWhere("id", 1))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteValidationAndList(t *testing.T) {
	ctx := context.Background()
	tbl := openTest(t)

	bad := tbl.NewEntity(map[string]any{"name": "short"})
	ok, err := tbl.Save(ctx, bad, orm.SaveOptions{})
	require.NoError(t, err)
	assert.False(t, ok)

	for _, n := range []string{"Second title", "First title!"} {
		e := tbl.NewEntity(map[string]any{"name": n})
		ok, err := tbl.Save(ctx, e, orm.SaveOptions{})
		require.NoError(t, err)
		require.True(t, ok)
	}
	list, err := tbl.List(ctx, &orm.Query{Order: []string{"name ASC"}})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "First title!", list[0].Value)

	_, err = tbl.Find(ctx, &orm.Query{Where: map[string]any{"nope": 1}})
	assert.Error(t, err)
}
