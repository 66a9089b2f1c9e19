// Package registry loads CRUD resource definitions: a table schema plus
// the actions and listeners mounted for it.
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"crudd/internal/common/fsutil"
	"crudd/internal/crud"
	"crudd/internal/orm"
)

// Action maps one action name to an action kind with overrides.
type Action struct {
	// Kind defaults to the action name.
	Kind              string `yaml:"kind"`
	crud.ActionConfig `yaml:",inline"`
}

// Resource is one resource file.
type Resource struct {
	orm.Schema `yaml:",inline"`
	Actions    map[string]Action `yaml:"actions"`
	Listeners  []string          `yaml:"listeners"`
	// Rows seed an empty table.
	Rows []map[string]any `yaml:"rows"`

	// Source is the file the resource was read from.
	Source string `yaml:"-"`
}

// DefaultActions are mapped when a resource declares none.
var DefaultActions = []string{crud.KindIndex, crud.KindView, crud.KindAdd, crud.KindEdit, crud.KindDelete}

// ActionNames returns the mapped action names, sorted.
func (r *Resource) ActionNames() []string {
	out := make([]string, 0, len(r.Actions))
	for n := range r.Actions {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Resource) normalize() error {
	if err := r.Schema.Normalize(); err != nil {
		return err
	}
	if len(r.Actions) == 0 {
		r.Actions = map[string]Action{}
		for _, n := range DefaultActions {
			r.Actions[n] = Action{Kind: n}
		}
	}
	kinds := map[string]bool{}
	for _, k := range crud.ActionKinds() {
		kinds[k] = true
	}
	for name, a := range r.Actions {
		if a.Kind == "" {
			a.Kind = name
			r.Actions[name] = a
		}
		if !kinds[a.Kind] {
			return fmt.Errorf("resource %s: action %s has unknown kind %q", r.Name, name, a.Kind)
		}
	}
	return nil
}

// Decode reads one resource definition. Unknown keys are rejected.
func Decode(rd io.Reader) (*Resource, error) {
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	var r Resource
	if err := dec.Decode(&r); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty resource definition")
		}
		return nil, err
	}
	if err := r.normalize(); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadDir reads every *.yaml and *.yml file in dir, in name order.
// Resource names must be unique.
func LoadDir(dir string) ([]*Resource, error) {
	abs, err := fsutil.ResolveDir(dir)
	if err != nil {
		return nil, err
	}
	files, err := fsutil.ListByExt(abs, ".yaml", ".yml")
	if err != nil {
		return nil, err
	}
	var out []*Resource
	seen := map[string]string{}
	for _, p := range files {
		name := filepath.Base(p)
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		r, err := Decode(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		key := strings.ToLower(r.Name)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("%s: resource %s already defined in %s", name, r.Name, prev)
		}
		seen[key] = name
		r.Source = p
		out = append(out, r)
	}
	return out, nil
}
