// Package confstore provides a hierarchical, dot-path addressed key/value
// store with merge-vs-overwrite write semantics.
//
// Paths are dot-delimited ("scope.sample.query"). Reading a missing leaf
// returns nil rather than an error. Writing with merge=true deep-merges maps
// into an existing map value (new keys win on scalar conflicts); writing with
// merge=false replaces the subtree outright.
package confstore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Store is a tree of string keys to scalars, slices and nested maps.
// It is not safe for concurrent writers; one Store is owned by one request
// or by setup code that runs before requests are served.
type Store struct {
	root map[string]any
}

// New returns a store seeded with a deep copy of defaults.
func New(defaults map[string]any) *Store {
	s := &Store{root: map[string]any{}}
	if defaults != nil {
		s.root = copyMap(normalize(defaults).(map[string]any))
	}
	return s
}

// Get returns the value stored at path, or nil when any segment is missing.
// An empty path returns the whole tree.
func (s *Store) Get(path string) any {
	if path == "" {
		return s.root
	}
	var cur any = s.root
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

// Has reports whether a value (including an explicit nil) exists at path.
func (s *Store) Has(path string) bool {
	parent, leaf := s.parent(path, false)
	if parent == nil {
		return false
	}
	_, ok := parent[leaf]
	return ok
}

// Set writes value at path. Intermediate maps are created as needed; a
// scalar sitting on an intermediate segment is replaced by a map.
func (s *Store) Set(path string, value any, merge bool) {
	value = normalize(value)
	if path == "" {
		m, ok := value.(map[string]any)
		if !ok {
			return
		}
		if merge {
			s.root = mergeMaps(s.root, m)
		} else {
			s.root = copyMap(m)
		}
		return
	}
	parent, leaf := s.parent(path, true)
	if merge {
		if existing, ok := parent[leaf].(map[string]any); ok {
			if incoming, ok := value.(map[string]any); ok {
				parent[leaf] = mergeMaps(existing, incoming)
				return
			}
		}
	}
	if m, ok := value.(map[string]any); ok {
		value = copyMap(m)
	}
	parent[leaf] = value
}

// Delete removes the value at path. Missing paths are ignored.
func (s *Store) Delete(path string) {
	parent, leaf := s.parent(path, false)
	if parent != nil {
		delete(parent, leaf)
	}
}

// Sub returns a new store holding a deep copy of the subtree at path.
// A missing or non-map subtree yields an empty store.
func (s *Store) Sub(path string) *Store {
	m, _ := s.Get(path).(map[string]any)
	return New(m)
}

// All returns a deep copy of the whole tree.
func (s *Store) All() map[string]any {
	return copyMap(s.root)
}

// Keys returns the sorted child keys of the map at path.
func (s *Store) Keys(path string) []string {
	m, _ := s.Get(path).(map[string]any)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the value at path coerced to a string, "" when absent.
func (s *Store) String(path string) string {
	return cast.ToString(s.Get(path))
}

// Bool returns the value at path coerced to a bool, false when absent.
func (s *Store) Bool(path string) bool {
	return cast.ToBool(s.Get(path))
}

// Int returns the value at path coerced to an int, accepting the numeric
// shapes produced by the yaml, json and toml decoders.
func (s *Store) Int(path string) int {
	return cast.ToInt(s.Get(path))
}

// Strings returns the string list at path. A single string is promoted to a
// one-element list.
func (s *Store) Strings(path string) []string {
	switch v := s.Get(path).(type) {
	case string:
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Decode maps the subtree at path onto out (a pointer to a struct carrying
// yaml tags). A missing subtree leaves out untouched.
func (s *Store) Decode(path string, out any) error {
	v := s.Get(path)
	if v == nil {
		return nil
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("confstore: encode %q: %w", path, err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("confstore: decode %q: %w", path, err)
	}
	return nil
}

// parent walks to the map holding the last segment of path. With create set,
// missing intermediate maps are created.
func (s *Store) parent(path string, create bool) (map[string]any, string) {
	segs := strings.Split(path, ".")
	cur := s.root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			if !create {
				return nil, ""
			}
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	return cur, segs[len(segs)-1]
}

// mergeMaps returns dst deep-merged with src. Nested maps merge recursively;
// everything else in src overwrites dst.
func mergeMaps(dst, src map[string]any) map[string]any {
	out := copyMap(dst)
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := out[k].(map[string]any); ok {
				out[k] = mergeMaps(dm, sm)
				continue
			}
			out[k] = copyMap(sm)
			continue
		}
		out[k] = v
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case map[string]any:
			out[k] = copyMap(t)
		case []any:
			out[k] = append([]any(nil), t...)
		default:
			out[k] = v
		}
	}
	return out
}

// normalize converts map[any]any and map[string]string values produced by
// decoders and literals into map[string]any so lookups see one shape.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = e
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}
