package crud

import (
	"net/http"

	"github.com/spf13/cast"

	"crudd/internal/event"
	"crudd/internal/orm"
)

// AddAction creates a record.
type AddAction struct{ *BaseAction }

// DefaultAddConfig is the Add action's baseline configuration.
func DefaultAddConfig() ActionConfig {
	return ActionConfig{
		Scope:         ScopeEntity,
		Inflection:    "singular",
		EntityKey:     "entity",
		RelatedModels: &Related{Enabled: true},
		API: APIConfig{
			Methods: []string{"put", "post"},
			Success: APIResult{Code: http.StatusCreated, Data: DataRules{Entity: []PathRule{{Key: "id"}}}},
			Error:   APIResult{Exception: &APIException{Type: ExceptionValidate}},
		},
		Redirect: []RedirectRule{
			{Name: "post_add", Reader: "request.data", Key: "_add", URL: RedirectURL{Action: "add"}},
			{Name: "post_edit", Reader: "request.data", Key: "_edit",
				URL: RedirectURL{Action: "edit", Pass: []Ref{Read("entity.field", "id")}}},
		},
		Messages: map[string]Message{
			"success": {Text: "Successfully created {name}"},
			"error":   {Text: "Could not create {name}"},
		},
	}
}

// NewAddAction builds an Add action.
func NewAddAction(c *Crud, name string, cfg ActionConfig) Action {
	a := &AddAction{NewBaseAction(c, name, KindAdd, DefaultAddConfig().Merge(cfg))}
	a.On(http.MethodGet, a.get)
	a.On(http.MethodPost, a.post)
	a.On(http.MethodPut, a.post)
	return a
}

// get renders the form with an unvalidated entity prefilled from the
// query string.
func (a *AddAction) get([]string) (*Response, error) {
	t, err := a.Table()
	if err != nil {
		return nil, err
	}
	e := orm.NewEntity(t.Alias(), nil)
	orm.Marshal(t.Schema(), e, a.Request().QueryMap())
	s := a.Subject()
	s.SetSuccess(false)
	s.Entity = e
	if _, err := a.Trigger(event.BeforeRender, s); err != nil {
		return nil, err
	}
	return nil, nil
}

func (a *AddAction) post([]string) (*Response, error) {
	t, err := a.Table()
	if err != nil {
		return nil, err
	}
	s := a.Subject()
	s.SaveOptions = a.SaveOptions()
	s.Entity = t.NewEntity(a.Request().Body)
	return a.persist(s, true)
}

// EditAction updates a record.
type EditAction struct{ *BaseAction }

// DefaultEditConfig is the Edit action's baseline configuration.
func DefaultEditConfig() ActionConfig {
	return ActionConfig{
		Scope:         ScopeEntity,
		FindMethod:    "all",
		RelatedModels: &Related{Enabled: true},
		API: APIConfig{
			Methods: []string{"put", "post", "patch"},
			Success: APIResult{Code: http.StatusOK},
			Error:   APIResult{Exception: &APIException{Type: ExceptionValidate}},
		},
		Redirect: []RedirectRule{
			{Name: "post_add", Reader: "request.data", Key: "_add", URL: RedirectURL{Action: "add"}},
			{Name: "post_edit", Reader: "request.data", Key: "_edit",
				URL: RedirectURL{Action: "edit", Pass: []Ref{Read("subject.key", "id")}}},
		},
		Messages: map[string]Message{
			"success": {Text: "Successfully updated {name}"},
			"error":   {Text: "Could not update {name}"},
		},
	}
}

// NewEditAction builds an Edit action.
func NewEditAction(c *Crud, name string, cfg ActionConfig) Action {
	a := &EditAction{NewBaseAction(c, name, KindEdit, DefaultEditConfig().Merge(cfg))}
	a.On(http.MethodGet, a.get)
	a.On(http.MethodPut, a.put)
	a.On(http.MethodPost, a.put)
	a.On(http.MethodPatch, a.put)
	return a
}

func (a *EditAction) get(args []string) (*Response, error) {
	id := firstArg(args)
	if err := a.ValidateID(id); err != nil {
		return nil, err
	}
	s := a.Subject()
	s.ID = id
	if _, err := a.FindRecord(id, s); err != nil {
		return nil, err
	}
	if _, err := a.Trigger(event.BeforeRender, s); err != nil {
		return nil, err
	}
	return nil, nil
}

func (a *EditAction) put(args []string) (*Response, error) {
	id := firstArg(args)
	if err := a.ValidateID(id); err != nil {
		return nil, err
	}
	s := a.Subject()
	s.ID = id
	e, err := a.FindRecord(id, s)
	if err != nil {
		return nil, err
	}
	s.Table.PatchEntity(e, a.Request().Body)
	s.SaveOptions = a.SaveOptions()
	return a.persist(s, false)
}

// persist runs the save half of Add and Edit on s.Entity.
func (a *BaseAction) persist(s *Subject, created bool) (*Response, error) {
	// Edit arrives with success already set by the find.
	prior := s.success
	ev, err := a.Trigger(event.BeforeSave, s)
	if err != nil {
		return nil, err
	}
	if ev.IsStopped() {
		return a.saveStopped(s, created, s.success != prior)
	}
	ok, err := a.save(s.Table, s.Entity, s.SaveOptions)
	if err != nil {
		return nil, err
	}
	if ok {
		return a.saved(s, created)
	}
	return a.saveFailed(s)
}

func (a *BaseAction) saved(s *Subject, created bool) (*Response, error) {
	s.SetSuccess(true)
	s.Created = created
	if s.ID == "" && s.Entity != nil && s.Table != nil {
		s.ID = cast.ToString(s.Entity.Get(s.Table.Schema().PrimaryKey))
	}
	if _, err := a.Trigger(event.AfterSave, s); err != nil {
		return nil, err
	}
	if err := a.SetFlash("success", s); err != nil {
		return nil, err
	}
	return a.Redirect(s, a.IndexURL())
}

func (a *BaseAction) saveFailed(s *Subject) (*Response, error) {
	s.SetSuccess(false)
	s.Created = false
	if _, err := a.Trigger(event.AfterSave, s); err != nil {
		return nil, err
	}
	if err := a.SetFlash("error", s); err != nil {
		return nil, err
	}
	if _, err := a.Trigger(event.BeforeRender, s); err != nil {
		return nil, err
	}
	return nil, nil
}

// saveStopped trusts a success flag only when it was set while beforeSave
// was firing.
func (a *BaseAction) saveStopped(s *Subject, created, decided bool) (*Response, error) {
	if !decided {
		s.SetSuccess(false)
	}
	if s.Succeeded() {
		return a.saved(s, created)
	}
	if err := a.SetFlash("error", s); err != nil {
		return nil, err
	}
	return a.Redirect(s, a.IndexURL())
}

// DeleteAction removes a record.
type DeleteAction struct{ *BaseAction }

// DefaultDeleteConfig is the Delete action's baseline configuration.
func DefaultDeleteConfig() ActionConfig {
	return ActionConfig{
		Scope:      ScopeEntity,
		FindMethod: "all",
		API: APIConfig{
			Success: APIResult{Code: http.StatusOK},
			Error:   APIResult{Code: http.StatusBadRequest},
		},
		Messages: map[string]Message{
			"success": {Text: "Successfully deleted {name}"},
			"error":   {Text: "Could not delete {name}"},
		},
	}
}

// NewDeleteAction builds a Delete action.
func NewDeleteAction(c *Crud, name string, cfg ActionConfig) Action {
	a := &DeleteAction{NewBaseAction(c, name, KindDelete, DefaultDeleteConfig().Merge(cfg))}
	a.On(http.MethodPost, a.post)
	a.On(http.MethodDelete, a.post)
	return a
}

func (a *DeleteAction) post(args []string) (*Response, error) {
	id := firstArg(args)
	if err := a.ValidateID(id); err != nil {
		return nil, err
	}
	s := a.Subject()
	s.ID = id
	e, err := a.FindRecord(id, s)
	if err != nil {
		return nil, err
	}
	ev, err := a.Trigger(event.BeforeDelete, s)
	if err != nil {
		return nil, err
	}
	if ev.IsStopped() {
		s.SetSuccess(false)
		if err := a.SetFlash("error", s); err != nil {
			return nil, err
		}
		return a.Redirect(s, a.IndexURL())
	}
	ok, err := a.delete(s.Table, e)
	if err != nil {
		return nil, err
	}
	s.SetSuccess(ok)
	if _, err := a.Trigger(event.AfterDelete, s); err != nil {
		return nil, err
	}
	typ := "error"
	if ok {
		typ = "success"
	}
	if err := a.SetFlash(typ, s); err != nil {
		return nil, err
	}
	return a.Redirect(s, a.IndexURL())
}
