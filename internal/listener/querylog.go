package listener

import (
	"crudd/internal/confstore"
	"crudd/internal/crud"
	"crudd/internal/event"
	"crudd/internal/orm"
)

// APIQueryLog records the statements run while serving an API request and
// exposes them as the `queryLog` view var when the controller is in debug
// mode.
type APIQueryLog struct {
	Base
	log *orm.QueryLog
}

// NewAPIQueryLog builds an ApiQueryLog listener. Option connections
// limits logging to the named connections; empty means all.
func NewAPIQueryLog(c *crud.Crud, opts *confstore.Store) (*APIQueryLog, error) {
	return &APIQueryLog{Base: newBase(c, map[string]any{"connections": []any{}}, opts), log: &orm.QueryLog{}}, nil
}

func (l *APIQueryLog) Implemented() []crud.Subscription {
	ensureAPIDetectors(l.request())
	if !l.request().Is("api") {
		return nil
	}
	return []crud.Subscription{
		{Kind: event.BeforeFilter, Priority: event.PrioritySetup, Handler: l.setupLogging},
		{Kind: event.BeforeRender, Priority: event.PriorityDomain, Handler: l.beforeRender},
	}
}

// Log returns the collected statements.
func (l *APIQueryLog) Log() *orm.QueryLog { return l.log }

func (l *APIQueryLog) setupLogging(_ *event.Event[*crud.Subject]) error {
	req := l.request()
	req.SetContext(orm.WithQueryLogger(req.Context(), l.log, l.opts.Strings("connections")...))
	return nil
}

func (l *APIQueryLog) beforeRender(_ *event.Event[*crud.Subject]) error {
	if !l.controller().Debug {
		return nil
	}
	a, err := l.action()
	if err != nil {
		return err
	}
	l.controller().Set("queryLog", l.log.Entries())
	a.SetConfig(crud.ActionConfig{Serialize: appendUnique(a.Config().Serialize, "queryLog")})
	return nil
}
