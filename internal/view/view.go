// Package view holds the view classes a controller renders through:
// Json, Xml and JsonApi for API requests and Html for everything else.
package view

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"crudd/internal/crud"
)

// Register makes every view class available to controllers.
func Register() {
	crud.RegisterView("Json", JSON{})
	crud.RegisterView("Xml", XML{})
	crud.RegisterView("JsonApi", JSONAPI{})
	crud.RegisterView(crud.DefaultViewClass, NewHTML())
}

// entries returns the serialize list, or every public view var when no
// list was set.
func entries(c *crud.Controller) []crud.SerializeEntry {
	if list, ok := c.Serialize(); ok {
		return list
	}
	var names []string
	for _, n := range c.ViewVarNames() {
		if strings.HasPrefix(n, "_") || n == "viewVar" {
			continue
		}
		names = append(names, n)
	}
	return crud.SerializeVars(names...)
}

// generic converts v to maps, slices and scalars through its JSON form.
func generic(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
