package crud

import (
	"crudd/internal/event"
)

// ViewAction shows a single record.
type ViewAction struct{ *BaseAction }

// DefaultViewConfig is the View action's baseline configuration.
func DefaultViewConfig() ActionConfig {
	return ActionConfig{Scope: ScopeEntity, FindMethod: "all"}
}

// NewViewAction builds a View action.
func NewViewAction(c *Crud, name string, cfg ActionConfig) Action {
	a := &ViewAction{NewBaseAction(c, name, KindView, DefaultViewConfig().Merge(cfg))}
	a.On("", a.handle)
	return a
}

func (a *ViewAction) handle(args []string) (*Response, error) {
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

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
