package listener

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudd/internal/crud"
)

func TestRedirectFollowsFirstTruthyRule(t *testing.T) {
	f := newFixture(t, http.MethodPost, "")
	f.req.Body = map[string]any{"name": "Hello World", "_add": "", "_edit": "1"}
	f.listen(t, "redirect", KindRedirect, nil)

	resp, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/blogs/edit/4", resp.Location())
}

func TestRedirectWithoutMatchKeepsDefault(t *testing.T) {
	f := newFixture(t, http.MethodPost, "")
	f.req.Body = map[string]any{"name": "Hello World"}
	f.listen(t, "redirect", KindRedirect, nil)

	resp, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	assert.Equal(t, "/blogs", resp.Location())
}

func TestRedirectQueryAndSubjectReaders(t *testing.T) {
	f := newFixture(t, http.MethodPost, "")
	require.NoError(t, f.crud.MapAction("add", crud.KindAdd, crud.ActionConfig{
		Redirect: []crud.RedirectRule{{
			Name:   "post_view",
			Reader: "request.query",
			Key:    "again",
			URL: crud.RedirectURL{
				Action: "view",
				Pass:   []crud.Ref{crud.Read("subject.key", "id")},
				Query:  map[string]crud.Ref{"from": crud.Lit("add")},
			},
		}},
	}, true))
	f.req.QueryValues.Set("again", "1")
	f.req.Body = map[string]any{"name": "Hello World"}
	f.listen(t, "redirect", KindRedirect, nil)

	resp, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	assert.Equal(t, "/blogs/view/4?from=add", resp.Location())
}

func TestRedirectInvalidReader(t *testing.T) {
	f := newFixture(t, http.MethodPost, "")
	require.NoError(t, f.crud.MapAction("add", crud.KindAdd, crud.ActionConfig{
		Redirect: []crud.RedirectRule{{Name: "custom", Reader: "session.key", Key: "next"}},
	}, true))
	f.req.Body = map[string]any{"name": "Hello World"}
	f.listen(t, "redirect", KindRedirect, nil)

	_, err := f.crud.Execute("add", nil)
	require.Error(t, err)
	assert.Equal(t, "invalid reader: session.key", err.Error())
}

func TestRedirectCustomReader(t *testing.T) {
	f := newFixture(t, http.MethodDelete, "")
	require.NoError(t, f.crud.MapAction("delete", crud.KindDelete, crud.ActionConfig{
		Redirect: []crud.RedirectRule{{
			Name:   "back",
			Reader: "always",
			URL:    crud.RedirectURL{Controller: "Users", Action: "view", Pass: []crud.Ref{crud.Read("entity.field", "user_id")}},
		}},
	}, true))
	f.listen(t, "redirect", KindRedirect, nil)
	l, err := f.crud.Listener("redirect")
	require.NoError(t, err)
	r := l.(*Redirect)
	r.SetReader("always", func(*crud.Subject, string) any { return true })
	_, ok := r.Reader("entity.field")
	assert.True(t, ok)

	resp, err := f.crud.Execute("delete", []string{"2"})
	require.NoError(t, err)
	assert.Equal(t, "/users/view/2", resp.Location())
}

func TestRedirectSkipsURLOfFalsyRule(t *testing.T) {
	f := newFixture(t, http.MethodPost, "")
	require.NoError(t, f.crud.MapAction("add", crud.KindAdd, crud.ActionConfig{
		Redirect: []crud.RedirectRule{
			{
				Name:   "unused",
				Reader: "request.query",
				Key:    "absent",
				URL:    crud.RedirectURL{Action: "view", Pass: []crud.Ref{crud.Read("counted", "id")}},
			},
			{
				Name:   "post_view",
				Reader: "request.query",
				Key:    "again",
				URL:    crud.RedirectURL{Action: "view", Pass: []crud.Ref{crud.Read("subject.key", "id")}},
			},
		},
	}, true))
	f.req.QueryValues.Set("again", "1")
	f.req.Body = map[string]any{"name": "Hello World"}
	f.listen(t, "redirect", KindRedirect, nil)
	l, err := f.crud.Listener("redirect")
	require.NoError(t, err)
	calls := 0
	l.(*Redirect).SetReader("counted", func(*crud.Subject, string) any {
		calls++
		return "99"
	})

	resp, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	assert.Equal(t, "/blogs/view/4", resp.Location())
	assert.Zero(t, calls, "a falsy rule's URL is never expanded")
}
