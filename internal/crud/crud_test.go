package crud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crudd/internal/confstore"
	"crudd/internal/event"
	"crudd/internal/orm"
	"crudd/internal/orm/memory"
)

// varsView renders the view var names, enough to assert on rendering.
type varsView struct{}

func (varsView) Render(c *Controller) ([]byte, string, error) {
	b, err := json.Marshal(c.ViewVarNames())
	return b, "application/json", err
}

func init() { RegisterView(DefaultViewClass, varsView{}) }

type fixture struct {
	crud  *Crud
	ctrl  *Controller
	table *memory.Table
	flash *FlashBag
}

func newFixture(t *testing.T, method string, rows ...map[string]any) *fixture {
	t.Helper()
	loc := orm.NewLocator()
	tbl, err := memory.New(&orm.Schema{
		Name:    "Blogs",
		Columns: []orm.Column{{Name: "name"}, {Name: "body", Type: orm.TypeText}},
		Rules:   map[string]orm.Rules{"name": {Required: true, MinLength: 10}},
	}, memory.WithLocator(loc), memory.WithRows(rows...))
	require.NoError(t, err)

	flash := &FlashBag{}
	req := NewRequest(context.Background(), method, "/blogs")
	ctrl := NewController("Blogs", req, WithTables(loc), WithFlash(flash))
	c := New(ctrl, WithEventLogging(true))
	for _, kind := range []string{KindIndex, KindList, KindLookup, KindView, KindAdd, KindEdit, KindDelete} {
		require.NoError(t, c.MapAction(kind, kind, ActionConfig{}, true))
	}
	return &fixture{crud: c, ctrl: ctrl, table: tbl, flash: flash}
}

func seed() []map[string]any {
	return []map[string]any{
		{"name": "1st post", "body": "1st post body"},
		{"name": "2nd post", "body": "2nd post body"},
		{"name": "3rd post", "body": "3rd post body"},
	}
}

func (f *fixture) eventNames() []string {
	var out []string
	for _, e := range f.crud.EventLog() {
		out = append(out, e.Name)
	}
	return out
}

func (f *fixture) flashTexts() []string {
	var out []string
	for _, m := range f.flash.Messages("flash") {
		out = append(out, m.Text)
	}
	return out
}

func TestIndexPaginatesAndPublishesViewVars(t *testing.T) {
	f := newFixture(t, http.MethodGet, seed()...)

	resp, err := f.crud.Execute("index", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	want := []string{
		"Crud.beforeFilter", "Crud.startup", "Crud.beforeHandle",
		"Crud.beforePaginate", "Crud.afterPaginate", "Crud.beforeRender",
	}
	if diff := cmp.Diff(want, f.eventNames()); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
	v, ok := f.ctrl.Get("blogs")
	require.True(t, ok)
	assert.Equal(t, 3, v.(*orm.ResultSet).Len())
	viewVar, _ := f.ctrl.Get("viewVar")
	assert.Equal(t, "blogs", viewVar)
	success, _ := f.ctrl.Get("success")
	assert.Equal(t, true, success)
	assert.Equal(t, "index", f.ctrl.Template())
}

func TestIndexPageOutOfRangeRedirectsToLastPage(t *testing.T) {
	f := newFixture(t, http.MethodGet, seed()...)
	f.ctrl.Request.QueryValues = url.Values{"page": {"9"}}

	resp, err := f.crud.Execute("index", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/blogs?page=1", resp.Location())
}

func TestViewFindsRecord(t *testing.T) {
	f := newFixture(t, http.MethodGet, seed()...)

	_, err := f.crud.Execute("view", []string{"2"})
	require.NoError(t, err)
	v, ok := f.ctrl.Get("blog")
	require.True(t, ok)
	assert.Equal(t, "2nd post", v.(*orm.Entity).Get("name"))
	assert.Contains(t, f.eventNames(), "Crud.afterFind")
}

func TestViewRecordNotFound(t *testing.T) {
	f := newFixture(t, http.MethodGet, seed()...)

	_, err := f.crud.Execute("view", []string{"42"})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "Not found", err.Error())
	assert.Contains(t, f.eventNames(), "Crud.recordNotFound")
	assert.NotContains(t, f.eventNames(), "Crud.afterFind")
}

func TestViewInvalidID(t *testing.T) {
	f := newFixture(t, http.MethodGet, seed()...)

	_, err := f.crud.Execute("view", []string{"abc"})
	require.Error(t, err)
	assert.True(t, IsBadRequest(err))
	assert.Equal(t, "Invalid id", err.Error())
	assert.Contains(t, f.eventNames(), "Crud.invalidId")
	assert.NotContains(t, f.eventNames(), "Crud.beforeFind")
}

func TestBadIDAcrossRecordActions(t *testing.T) {
	count := func(names []string, name string) int {
		n := 0
		for _, got := range names {
			if got == name {
				n++
			}
		}
		return n
	}
	for _, tc := range []struct {
		action, method string
	}{
		{"view", http.MethodGet},
		{"edit", http.MethodPut},
		{"delete", http.MethodDelete},
	} {
		t.Run(tc.action+" invalid id", func(t *testing.T) {
			f := newFixture(t, tc.method, seed()...)
			f.ctrl.Request.Body = map[string]any{"name": "Never gets saved"}

			_, err := f.crud.Execute(tc.action, []string{"abc"})
			require.Error(t, err)
			assert.True(t, IsBadRequest(err))
			names := f.eventNames()
			assert.Equal(t, 1, count(names, "Crud.invalidId"))
			assert.Zero(t, count(names, "Crud.beforeFind"))
			assert.Zero(t, count(names, "Crud.recordNotFound"))
			assert.Zero(t, count(names, "Crud.beforeSave"))
			assert.Zero(t, count(names, "Crud.beforeDelete"))
			assert.Equal(t, 3, f.table.Len())
		})
		t.Run(tc.action+" missing record", func(t *testing.T) {
			f := newFixture(t, tc.method, seed()...)
			f.ctrl.Request.Body = map[string]any{"name": "Never gets saved"}

			_, err := f.crud.Execute(tc.action, []string{"42"})
			require.Error(t, err)
			assert.True(t, IsNotFound(err))
			names := f.eventNames()
			assert.Equal(t, 1, count(names, "Crud.beforeFind"))
			assert.Equal(t, 1, count(names, "Crud.recordNotFound"))
			assert.Zero(t, count(names, "Crud.invalidId"))
			assert.Zero(t, count(names, "Crud.afterFind"))
			assert.Zero(t, count(names, "Crud.beforeSave"))
			assert.Zero(t, count(names, "Crud.beforeDelete"))
			assert.Equal(t, 3, f.table.Len())
		})
	}
}

func TestValidateIDStrategies(t *testing.T) {
	f := newFixture(t, http.MethodGet)
	a, err := f.crud.Action("view")
	require.NoError(t, err)
	base := a.(*ViewAction).BaseAction

	tests := []struct {
		strategy string
		id       string
		ok       bool
	}{
		{ValidateIDAuto, "12", true},
		{ValidateIDAuto, "x", false},
		{ValidateIDNone, "anything", true},
		{ValidateIDInteger, "007", true},
		{ValidateIDInteger, "-1", false},
		{ValidateIDUUID, "2f1f8d6c-3b0a-4c55-9c1b-5b7e3f0f6a11", true},
		{ValidateIDUUID, "12", false},
	}
	for _, tt := range tests {
		base.cfg.ValidateID = tt.strategy
		assert.Equal(t, tt.ok, base.validID(tt.id), "%q/%q", tt.strategy, tt.id)
	}

	base.cfg.IDValidator = func(id string) bool { return id == "magic" }
	assert.True(t, base.validID("magic"))
	assert.False(t, base.validID("12"))
}

func TestAddGetBuildsUnvalidatedEntity(t *testing.T) {
	f := newFixture(t, http.MethodGet)
	f.ctrl.Request.QueryValues = url.Values{"name": {"short"}}

	var seen *Subject
	f.crud.On(event.BeforeRender, func(e *event.Event[*Subject]) error {
		seen = e.Subject()
		return nil
	})
	_, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.True(t, seen.HasSuccess())
	assert.False(t, seen.Succeeded())
	assert.Equal(t, "short", seen.Entity.Get("name"))
	assert.False(t, seen.Entity.HasErrors())
}

func TestAddPostSuccess(t *testing.T) {
	f := newFixture(t, http.MethodPost)
	f.ctrl.Request.Body = map[string]any{"name": "Hello World", "body": "Pretty hot body"}

	var after *Subject
	f.crud.On(event.AfterSave, func(e *event.Event[*Subject]) error {
		after = e.Subject()
		return nil
	})
	resp, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, "/blogs", resp.Location())
	assert.Equal(t, 1, f.table.Len())

	require.NotNil(t, after)
	assert.True(t, after.Succeeded())
	assert.True(t, after.Created)
	assert.Equal(t, "1", after.ID)
	assert.Equal(t, []string{"Successfully created blog"}, f.flashTexts())

	want := []string{
		"Crud.beforeFilter", "Crud.startup", "Crud.beforeHandle",
		"Crud.beforeSave", "Crud.afterSave", "Crud.setFlash", "Crud.beforeRedirect",
	}
	if diff := cmp.Diff(want, f.eventNames()); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestAddPostValidationFailureRenders(t *testing.T) {
	f := newFixture(t, http.MethodPost)
	f.ctrl.Request.Body = map[string]any{"name": "Hello"}

	resp, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Empty(t, resp.Location())
	assert.Equal(t, 0, f.table.Len())
	assert.Equal(t, []string{"Could not create blog"}, f.flashTexts())

	success, _ := f.ctrl.Get("success")
	assert.Equal(t, false, success)
	v, _ := f.ctrl.Get("blog")
	assert.Contains(t, v.(*orm.Entity).Errors(), "name")
	assert.Equal(t, "add", f.ctrl.Template())
}

func TestAddRedirectOverride(t *testing.T) {
	f := newFixture(t, http.MethodPost)
	f.ctrl.Request.Body = map[string]any{"name": "Hello World", "_redirect_url": "/elsewhere"}

	resp, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere", resp.Location())
}

func TestAddBeforeSaveStopped(t *testing.T) {
	t.Run("with success", func(t *testing.T) {
		f := newFixture(t, http.MethodPost)
		f.ctrl.Request.Body = map[string]any{"name": "Hello World"}
		f.crud.On(event.BeforeSave, func(e *event.Event[*Subject]) error {
			e.Subject().SetSuccess(true)
			e.StopPropagation()
			return nil
		})
		resp, err := f.crud.Execute("add", nil)
		require.NoError(t, err)
		assert.Equal(t, "/blogs", resp.Location())
		assert.Equal(t, 0, f.table.Len())
		assert.Equal(t, []string{"Successfully created blog"}, f.flashTexts())
		assert.Contains(t, f.eventNames(), "Crud.afterSave")
	})
	t.Run("without success", func(t *testing.T) {
		f := newFixture(t, http.MethodPost)
		f.ctrl.Request.Body = map[string]any{"name": "Hello World"}
		f.crud.On(event.BeforeSave, func(e *event.Event[*Subject]) error {
			e.StopPropagation()
			return nil
		})
		resp, err := f.crud.Execute("add", nil)
		require.NoError(t, err)
		assert.Equal(t, "/blogs", resp.Location())
		assert.Equal(t, 0, f.table.Len())
		assert.Equal(t, []string{"Could not create blog"}, f.flashTexts())
		assert.NotContains(t, f.eventNames(), "Crud.afterSave")
	})
}

func TestEditPutUpdatesRecord(t *testing.T) {
	f := newFixture(t, http.MethodPut, seed()...)
	f.ctrl.Request.Body = map[string]any{"name": "Edited the first post"}

	var after *Subject
	f.crud.On(event.AfterSave, func(e *event.Event[*Subject]) error {
		after = e.Subject()
		return nil
	})
	resp, err := f.crud.Execute("edit", []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, "/blogs", resp.Location())
	assert.Equal(t, []string{"Successfully updated blog"}, f.flashTexts())
	require.NotNil(t, after)
	assert.False(t, after.Created)

	e, err := f.table.First(context.Background(), orm.NewQuery("all").AddWhere("id", 1))
	require.NoError(t, err)
	assert.Equal(t, "Edited the first post", e.Get("name"))
}

func TestEditPutEventOrder(t *testing.T) {
	f := newFixture(t, http.MethodPut, seed()...)
	f.ctrl.Request.Body = map[string]any{"name": "Edited the second post"}

	_, err := f.crud.Execute("edit", []string{"2"})
	require.NoError(t, err)
	want := []string{
		"Crud.beforeFilter", "Crud.startup", "Crud.beforeHandle",
		"Crud.beforeFind", "Crud.afterFind",
		"Crud.beforeSave", "Crud.afterSave", "Crud.setFlash", "Crud.beforeRedirect",
	}
	if diff := cmp.Diff(want, f.eventNames()); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestEditBeforeSaveStopped(t *testing.T) {
	stored := func(t *testing.T, f *fixture) any {
		e, err := f.table.First(context.Background(), orm.NewQuery("all").AddWhere("id", 1))
		require.NoError(t, err)
		return e.Get("name")
	}
	t.Run("with success", func(t *testing.T) {
		f := newFixture(t, http.MethodPut, seed()...)
		f.ctrl.Request.Body = map[string]any{"name": "Edited the first post"}
		f.crud.On(event.BeforeSave, func(e *event.Event[*Subject]) error {
			e.Subject().SetSuccess(true)
			e.StopPropagation()
			return nil
		})
		resp, err := f.crud.Execute("edit", []string{"1"})
		require.NoError(t, err)
		assert.Equal(t, "/blogs", resp.Location())
		assert.Equal(t, []string{"Successfully updated blog"}, f.flashTexts())
		assert.Contains(t, f.eventNames(), "Crud.afterSave")
		assert.Equal(t, "1st post", stored(t, f))
	})
	t.Run("without success", func(t *testing.T) {
		f := newFixture(t, http.MethodPut, seed()...)
		f.ctrl.Request.Body = map[string]any{"name": "Edited the first post"}
		var stopped *Subject
		f.crud.On(event.BeforeSave, func(e *event.Event[*Subject]) error {
			e.StopPropagation()
			return nil
		})
		f.crud.On(event.SetFlash, func(e *event.Event[*Subject]) error {
			stopped = e.Subject()
			return nil
		})
		resp, err := f.crud.Execute("edit", []string{"1"})
		require.NoError(t, err)
		assert.Equal(t, "/blogs", resp.Location())
		assert.Equal(t, []string{"Could not update blog"}, f.flashTexts())
		assert.NotContains(t, f.eventNames(), "Crud.afterSave")
		require.NotNil(t, stopped)
		assert.False(t, stopped.Succeeded())
		assert.Equal(t, "1st post", stored(t, f))
	})
}

func TestEditGetRendersEntity(t *testing.T) {
	f := newFixture(t, http.MethodGet, seed()...)

	_, err := f.crud.Execute("edit", []string{"3"})
	require.NoError(t, err)
	v, ok := f.ctrl.Get("blog")
	require.True(t, ok)
	assert.Equal(t, "3rd post", v.(*orm.Entity).Get("name"))
}

func TestDelete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t, http.MethodDelete, seed()...)
		resp, err := f.crud.Execute("delete", []string{"1"})
		require.NoError(t, err)
		assert.Equal(t, "/blogs", resp.Location())
		assert.Equal(t, 2, f.table.Len())
		assert.Equal(t, []string{"Successfully deleted blog"}, f.flashTexts())
	})
	t.Run("stopped", func(t *testing.T) {
		f := newFixture(t, http.MethodPost, seed()...)
		f.crud.On(event.BeforeDelete, func(e *event.Event[*Subject]) error {
			e.StopPropagation()
			return nil
		})
		resp, err := f.crud.Execute("delete", []string{"1"})
		require.NoError(t, err)
		assert.Equal(t, "/blogs", resp.Location())
		assert.Equal(t, 3, f.table.Len())
		assert.Equal(t, []string{"Could not delete blog"}, f.flashTexts())
		assert.NotContains(t, f.eventNames(), "Crud.afterDelete")
		assert.Contains(t, f.eventNames(), "Crud.beforeRedirect")
	})
	t.Run("verb without handler", func(t *testing.T) {
		f := newFixture(t, http.MethodGet, seed()...)
		_, err := f.crud.Execute("delete", []string{"1"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotImplemented))
		assert.Equal(t, http.StatusNotImplemented, StatusCode(err))
	})
}

func TestLookupProjectsKeyValue(t *testing.T) {
	f := newFixture(t, http.MethodGet, seed()...)
	f.ctrl.Request.QueryValues = url.Values{"value": {"body"}}

	_, err := f.crud.Execute("lookup", nil)
	require.NoError(t, err)
	v, ok := f.ctrl.Get("blogs")
	require.True(t, ok)
	list := v.([]orm.ListItem)
	require.Len(t, list, 3)
	assert.Equal(t, "1st post body", list[0].Value)
	assert.Contains(t, f.eventNames(), "Crud.afterLookup")
}

func TestListReturnsEveryRow(t *testing.T) {
	f := newFixture(t, http.MethodGet, seed()...)

	_, err := f.crud.Execute("list", nil)
	require.NoError(t, err)
	v, _ := f.ctrl.Get("blogs")
	assert.Equal(t, 3, v.(*orm.ResultSet).Len())
	assert.NotContains(t, f.eventNames(), "Crud.beforePaginate")
}

func TestActionMappingErrors(t *testing.T) {
	f := newFixture(t, http.MethodGet)

	_, err := f.crud.Execute("missing", nil)
	assert.True(t, errors.Is(err, ErrActionNotConfigured))
	assert.True(t, IsNotFound(err))

	err = f.crud.MapAction("x", "nope", ActionConfig{}, true)
	assert.True(t, errors.Is(err, ErrMissingAction))

	require.NoError(t, f.crud.Disable("index"))
	assert.False(t, f.crud.IsActionMapped("index"))
	_, err = f.crud.Execute("index", nil)
	assert.True(t, errors.Is(err, ErrActionDisabled))

	require.NoError(t, f.crud.Enable("index"))
	assert.True(t, f.crud.IsActionMapped("index"))

	err = f.crud.AddListener("x", "nope", nil)
	assert.True(t, errors.Is(err, ErrMissingListener))
	_, err = f.crud.Listener("x")
	assert.True(t, errors.Is(err, ErrListenerNotConfigured))
}

func TestEventResultShortCircuits(t *testing.T) {
	f := newFixture(t, http.MethodGet, seed()...)
	f.crud.On(event.BeforeHandle, func(e *event.Event[*Subject]) error {
		e.SetResult(&Response{Status: http.StatusTeapot, Header: http.Header{}})
		return nil
	})

	resp, err := f.crud.Execute("index", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.Status)
	assert.NotContains(t, f.eventNames(), "Crud.beforePaginate")
}

func TestBeforeHandleCanSwitchAction(t *testing.T) {
	f := newFixture(t, http.MethodGet, seed()...)
	f.crud.On(event.BeforeHandle, func(e *event.Event[*Subject]) error {
		e.Subject().Action = "list"
		return nil
	})

	_, err := f.crud.Execute("index", nil)
	require.NoError(t, err)
	assert.Equal(t, "list", f.crud.CurrentAction())
	assert.Equal(t, "list", f.ctrl.Template())
}

func TestHandlerErrorPropagates(t *testing.T) {
	f := newFixture(t, http.MethodGet, seed()...)
	boom := errors.New("boom")
	f.crud.On(event.BeforePaginate, func(*event.Event[*Subject]) error { return boom })

	_, err := f.crud.Execute("index", nil)
	assert.ErrorIs(t, err, boom)
}

type recordingListener struct{ seen *[]string }

func (l recordingListener) Implemented() []Subscription {
	return []Subscription{{
		Kind:     event.BeforeRender,
		Priority: event.PriorityRespond,
		Handler: func(e *event.Event[*Subject]) error {
			*l.seen = append(*l.seen, e.Subject().Action)
			return nil
		},
	}}
}

func TestListenerLifecycle(t *testing.T) {
	var seen []string
	RegisterListener("recording", func(c *Crud, opts *confstore.Store) (Listener, error) {
		return recordingListener{seen: &seen}, nil
	})

	f := newFixture(t, http.MethodGet, seed()...)
	require.NoError(t, f.crud.AddListener("rec", "recording", nil))
	assert.Equal(t, []string{"rec"}, f.crud.Listeners())
	_, err := f.crud.Listener("rec")
	require.NoError(t, err)

	_, err = f.crud.Execute("index", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"index"}, seen)

	assert.True(t, f.crud.RemoveListener("rec"))
	assert.False(t, f.crud.RemoveListener("rec"))
	_, err = f.crud.Trigger(event.BeforeRender, NewSubject("index"))
	require.NoError(t, err)
	assert.Equal(t, []string{"index"}, seen)
}

func TestMessageResolution(t *testing.T) {
	f := newFixture(t, http.MethodPost)
	a, err := f.crud.Action("add")
	require.NoError(t, err)
	base := a.(*AddAction).BaseAction

	fc, err := base.Message("success", nil)
	require.NoError(t, err)
	assert.Equal(t, "Successfully created blog", fc.Text)
	assert.Equal(t, "add.success", fc.Type)
	assert.Equal(t, "default", fc.Element)
	assert.Equal(t, "flash", fc.Key)
	assert.Equal(t, "message success", fc.Params["class"])
	assert.Equal(t, "Successfully created blog", fc.Params["original"])

	fc, err = base.Message("recordNotFound", map[string]string{"id": "7"})
	require.NoError(t, err)
	assert.Equal(t, "Not found", fc.Text)
	assert.Equal(t, http.StatusNotFound, fc.Code)

	_, err = base.Message("bogus", nil)
	assert.Error(t, err)

	a.SetConfig(ActionConfig{Messages: map[string]Message{"success": {Text: "Stored {name} #{id}"}}})
	fc, err = base.Message("success", map[string]string{"id": "3"})
	require.NoError(t, err)
	assert.Equal(t, "Stored blog #3", fc.Text)
}

func TestGlobalMessageOverride(t *testing.T) {
	loc := orm.NewLocator()
	_, err := memory.New(&orm.Schema{Name: "Blogs", Columns: []orm.Column{{Name: "name"}}}, memory.WithLocator(loc))
	require.NoError(t, err)
	ctrl := NewController("Blogs", NewRequest(context.Background(), http.MethodGet, "/blogs/view/9"), WithTables(loc))
	c := New(ctrl, WithMessages(map[string]any{"recordNotFound": map[string]any{"text": "No {name} with id {id}"}}))
	require.NoError(t, c.MapAction("view", KindView, ActionConfig{}, true))

	_, err = c.Execute("view", []string{"9"})
	require.Error(t, err)
	assert.Equal(t, "No blog with id 9", err.Error())
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestCustomPrefixNamesEvents(t *testing.T) {
	f := newFixture(t, http.MethodGet)
	f.crud.Config().Set("eventPrefix", "Blogs", false)

	_, err := f.crud.Execute("index", nil)
	require.NoError(t, err)
	assert.Equal(t, "Blogs.beforeFilter", f.eventNames()[0])
}

func TestSetFlashStopSkipsFlash(t *testing.T) {
	f := newFixture(t, http.MethodPost)
	f.ctrl.Request.Body = map[string]any{"name": "Hello World"}
	f.crud.On(event.SetFlash, func(e *event.Event[*Subject]) error {
		e.StopPropagation()
		return nil
	})

	_, err := f.crud.Execute("add", nil)
	require.NoError(t, err)
	assert.Empty(t, f.flashTexts())
}

func TestCurrentActionAccessors(t *testing.T) {
	f := newFixture(t, http.MethodGet)
	f.crud.current = "index"

	assert.Equal(t, "all", f.crud.FindMethod())
	require.NoError(t, f.crud.SetFindMethod("published"))
	assert.Equal(t, "published", f.crud.FindMethod())

	assert.Equal(t, "blogs", f.crud.ViewVar())
	require.NoError(t, f.crud.SetViewVar("items"))
	assert.Equal(t, "items", f.crud.ViewVar())

	assert.Equal(t, "index", f.crud.View())
	require.NoError(t, f.crud.SetView("grid"))
	assert.Equal(t, "grid", f.crud.View())

	e, err := f.crud.Entity(map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", e.Get("name"))

	f.crud.UseTable("Missing")
	_, err = f.crud.Table()
	assert.Error(t, err)
}
