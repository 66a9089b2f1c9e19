package orm

import (
	"context"
	"sort"
	"sync"
	"time"
)

// LoggedQuery is one statement executed against a connection.
type LoggedQuery struct {
	Connection string        `json:"connection"`
	Query      string        `json:"query"`
	Params     []any         `json:"params,omitempty"`
	Took       time.Duration `json:"took"`
	Rows       int           `json:"rows"`
}

// QueryLogger receives executed statements.
type QueryLogger interface {
	LogQuery(q LoggedQuery)
}

// QueryLog collects statements in memory.
type QueryLog struct {
	mu      sync.Mutex
	entries []LoggedQuery
}

func (l *QueryLog) LogQuery(q LoggedQuery) {
	l.mu.Lock()
	l.entries = append(l.entries, q)
	l.mu.Unlock()
}

// Entries returns the collected statements grouped by connection name.
func (l *QueryLog) Entries() map[string][]LoggedQuery {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[string][]LoggedQuery{}
	for _, q := range l.entries {
		out[q.Connection] = append(out[q.Connection], q)
	}
	return out
}

func (l *QueryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type queryLoggerKey struct{}

type scopedLogger struct {
	logger      QueryLogger
	connections map[string]bool
	parent      *scopedLogger
}

// WithQueryLogger returns a context whose ORM calls report statements to l.
// With no connections given, statements of every connection are reported.
func WithQueryLogger(ctx context.Context, l QueryLogger, connections ...string) context.Context {
	sl := &scopedLogger{logger: l}
	if len(connections) > 0 {
		sl.connections = make(map[string]bool, len(connections))
		for _, c := range connections {
			sl.connections[c] = true
		}
	}
	if parent, ok := ctx.Value(queryLoggerKey{}).(*scopedLogger); ok {
		sl.parent = parent
	}
	return context.WithValue(ctx, queryLoggerKey{}, sl)
}

// LogQuery reports q to every logger attached to ctx for q's connection.
func LogQuery(ctx context.Context, q LoggedQuery) {
	sl, _ := ctx.Value(queryLoggerKey{}).(*scopedLogger)
	for ; sl != nil; sl = sl.parent {
		if sl.connections == nil || sl.connections[q.Connection] {
			sl.logger.LogQuery(q)
		}
	}
}

var (
	connMu      sync.RWMutex
	connections = map[string]bool{}
)

// RegisterConnection records a configured connection name.
func RegisterConnection(name string) {
	connMu.Lock()
	connections[name] = true
	connMu.Unlock()
}

// ConnectionNames returns the configured connection names, sorted.
func ConnectionNames() []string {
	connMu.RLock()
	defer connMu.RUnlock()
	out := make([]string, 0, len(connections))
	for n := range connections {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
