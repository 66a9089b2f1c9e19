package listener

import (
	"fmt"

	"github.com/rs/zerolog"

	"crudd/internal/confstore"
	"crudd/internal/crud"
	"crudd/internal/event"
)

// EventLog writes one structured log line per fired event.
type EventLog struct {
	Base
	level zerolog.Level
}

// NewEventLog builds an EventLog listener. Option level picks the zerolog
// level of the lines (default debug).
func NewEventLog(c *crud.Crud, opts *confstore.Store) (*EventLog, error) {
	l := &EventLog{Base: newBase(c, map[string]any{"level": "debug"}, opts)}
	lvl, err := zerolog.ParseLevel(l.opts.String("level"))
	if err != nil {
		return nil, fmt.Errorf("eventlog: %w", err)
	}
	l.level = lvl
	return l, nil
}

func (l *EventLog) Implemented() []crud.Subscription {
	kinds := event.Kinds()
	subs := make([]crud.Subscription, 0, len(kinds))
	for _, k := range kinds {
		subs = append(subs, crud.Subscription{Kind: k, Priority: event.PrioritySetup, Handler: l.log})
	}
	return subs
}

func (l *EventLog) log(e *event.Event[*crud.Subject]) error {
	s := e.Subject()
	ev := zlog.WithLevel(l.level).
		Str("event", e.Kind().Name(l.crud.Prefix())).
		Str("controller", l.controller().Name).
		Str("action", s.Action)
	if s.ID != "" {
		ev = ev.Str("id", s.ID)
	}
	if s.HasSuccess() {
		ev = ev.Bool("success", s.Succeeded())
	}
	ev.Msg("crud event")
	return nil
}
