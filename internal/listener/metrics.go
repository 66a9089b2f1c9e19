package listener

import (
	"github.com/prometheus/client_golang/prometheus"

	"crudd/internal/confstore"
	"crudd/internal/crud"
	"crudd/internal/event"
)

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crudd",
			Subsystem: "crud",
			Name:      "events_total",
			Help:      "Total number of fired CRUD events",
		},
		[]string{"controller", "event"},
	)

	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crudd",
			Subsystem: "crud",
			Name:      "actions_total",
			Help:      "Total number of rendered or redirected CRUD actions by outcome",
		},
		[]string{"controller", "action", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(eventsTotal, actionsTotal)
}

// Metrics counts fired events and action outcomes.
type Metrics struct {
	Base
}

// NewMetrics builds a Metrics listener. It takes no options.
func NewMetrics(c *crud.Crud, opts *confstore.Store) (*Metrics, error) {
	return &Metrics{Base: newBase(c, nil, opts)}, nil
}

func (l *Metrics) Implemented() []crud.Subscription {
	kinds := event.Kinds()
	subs := make([]crud.Subscription, 0, len(kinds)+2)
	for _, k := range kinds {
		subs = append(subs, crud.Subscription{Kind: k, Priority: event.PrioritySetup, Handler: l.countEvent})
	}
	subs = append(subs,
		crud.Subscription{Kind: event.BeforeRender, Priority: event.PriorityInstrument, Handler: l.countOutcome},
		crud.Subscription{Kind: event.BeforeRedirect, Priority: event.PriorityInstrument, Handler: l.countOutcome},
	)
	return subs
}

func (l *Metrics) countEvent(e *event.Event[*crud.Subject]) error {
	eventsTotal.WithLabelValues(l.controller().Name, e.Kind().Name(l.crud.Prefix())).Inc()
	return nil
}

func (l *Metrics) countOutcome(e *event.Event[*crud.Subject]) error {
	s := e.Subject()
	actionsTotal.WithLabelValues(l.controller().Name, s.Action, outcome(s)).Inc()
	return nil
}

// outcome labels a subject: success, failure or none when the action never
// decided.
func outcome(s *crud.Subject) string {
	switch {
	case !s.HasSuccess():
		return "none"
	case s.Succeeded():
		return "success"
	default:
		return "failure"
	}
}
