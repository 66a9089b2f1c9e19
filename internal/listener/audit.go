package listener

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/oklog/ulid/v2"

	"crudd/internal/confstore"
	"crudd/internal/crud"
	"crudd/internal/event"
)

// DefaultAuditTopic is the topic audit records are published on.
const DefaultAuditTopic = "crud.audit"

// AuditRecord is the payload of one audit message.
type AuditRecord struct {
	ID         string         `json:"id"`
	Event      string         `json:"event"`
	Controller string         `json:"controller"`
	Action     string         `json:"action"`
	Table      string         `json:"table"`
	Key        any            `json:"key,omitempty"`
	Success    bool           `json:"success"`
	Created    bool           `json:"created,omitempty"`
	Entity     map[string]any `json:"entity,omitempty"`
	At         time.Time      `json:"at"`
}

var (
	auditMu  sync.Mutex
	auditPub message.Publisher
)

// SetAuditPublisher replaces the publisher audit records go to.
func SetAuditPublisher(p message.Publisher) {
	auditMu.Lock()
	auditPub = p
	auditMu.Unlock()
}

// AuditPubSub returns the in-process pub/sub used when no publisher was
// installed, creating it on first use, or nil when another publisher was
// installed. Subscribe to DefaultAuditTopic on it to consume audit records.
func AuditPubSub() *gochannel.GoChannel {
	auditMu.Lock()
	defer auditMu.Unlock()
	if gc, ok := auditPub.(*gochannel.GoChannel); ok {
		return gc
	}
	if auditPub != nil {
		return nil
	}
	gc := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 100}, watermill.NopLogger{})
	auditPub = gc
	return gc
}

func auditPublisher() message.Publisher {
	auditMu.Lock()
	p := auditPub
	auditMu.Unlock()
	if p != nil {
		return p
	}
	return AuditPubSub()
}

// Audit publishes one record per saved or deleted entity.
type Audit struct {
	Base
	topic  string
	failed bool
}

// NewAudit builds an Audit listener. Options: topic (default crud.audit)
// and failed, which also records unsuccessful mutations.
func NewAudit(c *crud.Crud, opts *confstore.Store) (*Audit, error) {
	l := &Audit{Base: newBase(c, map[string]any{"topic": DefaultAuditTopic, "failed": false}, opts)}
	l.topic = l.opts.String("topic")
	if l.topic == "" {
		return nil, fmt.Errorf("audit: empty topic")
	}
	l.failed = l.opts.Bool("failed")
	return l, nil
}

func (l *Audit) Implemented() []crud.Subscription {
	return []crud.Subscription{
		{Kind: event.AfterSave, Priority: event.PriorityInstrument, Handler: l.publish},
		{Kind: event.AfterDelete, Priority: event.PriorityInstrument, Handler: l.publish},
	}
}

func (l *Audit) publish(e *event.Event[*crud.Subject]) error {
	s := e.Subject()
	if !s.Succeeded() && !l.failed {
		return nil
	}
	rec := AuditRecord{
		ID:         ulid.Make().String(),
		Event:      e.Kind().Name(l.crud.Prefix()),
		Controller: l.controller().Name,
		Action:     s.Action,
		Success:    s.Succeeded(),
		Created:    s.Created,
		At:         time.Now().UTC(),
	}
	if t, err := l.table(); err == nil {
		rec.Table = t.Alias()
		if s.Entity != nil {
			rec.Key = s.Entity.Get(t.Schema().PrimaryKey)
		}
	}
	if s.Entity != nil {
		rec.Entity = s.Entity.ToMap()
	}
	if rec.Key == nil && s.ID != "" {
		rec.Key = s.ID
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	msg := message.NewMessage(rec.ID, payload)
	msg.Metadata.Set("event", rec.Event)
	msg.Metadata.Set("controller", rec.Controller)
	if err := auditPublisher().Publish(l.topic, msg); err != nil {
		zlog.Warn().Err(err).Str("topic", l.topic).Msg("audit publish failed")
	}
	return nil
}
