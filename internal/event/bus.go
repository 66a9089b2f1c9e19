// Package event provides a synchronous, priority-ordered publish/subscribe
// bus keyed by an enumerated event Kind.
//
// Handlers run in ascending priority order; ties keep registration order.
// A handler may stop propagation, which skips the handlers that follow it
// for that firing only. Handler errors are not swallowed: Trigger returns
// the first one and the remaining handlers do not run.
package event

import (
	"sort"
	"sync"
)

// Priority determines execution order (lower values run first).
type Priority int

// Priorities used across the listener set.
const (
	PrioritySetup      Priority = 1
	PriorityFlash      Priority = 5
	PriorityHandle     Priority = 10
	PriorityDefault    Priority = 50
	PriorityDomain     Priority = 75
	PriorityRedirect   Priority = 90
	PriorityRespond    Priority = 100
	PriorityTransform  Priority = 200
	PriorityInstrument Priority = 5000
)

// Event is one firing of a Kind carrying a subject of type S.
type Event[S any] struct {
	kind    Kind
	subject S
	stopped bool
	result  any
}

// NewEvent builds an event outside of a bus, mainly for tests.
func NewEvent[S any](kind Kind, subject S) *Event[S] {
	return &Event[S]{kind: kind, subject: subject}
}

func (e *Event[S]) Kind() Kind { return e.kind }
func (e *Event[S]) Subject() S { return e.subject }
func (e *Event[S]) IsStopped() bool { return e.stopped }

// StopPropagation prevents later handlers from running for this firing.
func (e *Event[S]) StopPropagation() { e.stopped = true }

// SetResult records a value the caller should use instead of its default
// behaviour (for example a finished response).
func (e *Event[S]) SetResult(v any) { e.result = v }

// Result returns the value recorded by SetResult, or nil.
func (e *Event[S]) Result() any { return e.result }

// Handler reacts to an event. A returned error aborts the firing.
type Handler[S any] func(e *Event[S]) error

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	priority Priority
}

// WithPriority sets the subscription priority.
func WithPriority(p Priority) SubscribeOption {
	return func(c *subscribeConfig) { c.priority = p }
}

type subscriber[S any] struct {
	id       uint64
	priority Priority
	fn       Handler[S]
}

// Bus dispatches events to subscribers. Registration is safe for concurrent
// use; a single firing runs on the caller's goroutine.
type Bus[S any] struct {
	mu     sync.RWMutex
	subs   map[Kind][]subscriber[S]
	nextID uint64
}

// NewBus creates an empty bus.
func NewBus[S any]() *Bus[S] {
	return &Bus[S]{subs: make(map[Kind][]subscriber[S])}
}

// On subscribes fn to kind and returns a func that removes the subscription.
func (b *Bus[S]) On(kind Kind, fn Handler[S], opts ...SubscribeOption) func() {
	cfg := subscribeConfig{priority: PriorityDefault}
	for _, opt := range opts {
		opt(&cfg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	subs := append(b.subs[kind], subscriber[S]{id: id, priority: cfg.priority, fn: fn})
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].priority < subs[j].priority })
	b.subs[kind] = subs

	return func() { b.off(kind, id) }
}

func (b *Bus[S]) off(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[kind]
	for i, s := range subs {
		if s.id == id {
			b.subs[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Trigger fires kind with subject and returns the event once every handler
// ran, propagation was stopped, or a handler failed.
func (b *Bus[S]) Trigger(kind Kind, subject S) (*Event[S], error) {
	b.mu.RLock()
	subs := append([]subscriber[S](nil), b.subs[kind]...)
	b.mu.RUnlock()

	e := &Event[S]{kind: kind, subject: subject}
	for _, s := range subs {
		if err := s.fn(e); err != nil {
			return e, err
		}
		if e.stopped {
			break
		}
	}
	return e, nil
}

// Len returns the number of subscribers for kind.
func (b *Bus[S]) Len(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

// Reset drops every subscription.
func (b *Bus[S]) Reset() {
	b.mu.Lock()
	b.subs = make(map[Kind][]subscriber[S])
	b.mu.Unlock()
}
