package registry

import (
	"strings"
)

const demoUsers = `
name: Users
columns:
  - {name: name, type: string}
rules:
  name: {required: true}
actions:
  index: {}
  view: {}
  list: {}
listeners: [api, jsonapi, apipagination]
rows:
  - {name: ada}
  - {name: grace}
`

const demoBlogs = `
name: Blogs
columns:
  - {name: name, type: string}
  - {name: body, type: text}
  - {name: user_id, type: integer}
rules:
  name:
    required: true
    min_length: 10
associations:
  - {name: Users, type: manyToOne, target: Users}
behaviors: [Search]
actions:
  index: {}
  view: {}
  lookup: {}
  add:
    related_models: [Users]
  edit:
    related_models: [Users]
  delete: {}
listeners: [api, jsonapi, apipagination, apiquerylog, redirect, relatedmodels, search, translations, metrics, audit]
rows:
  - {name: 1st post here, body: Hello, user_id: 1}
  - {name: 2nd post here, body: World, user_id: 2}
  - {name: 3rd post here, body: Again, user_id: 1}
`

// Demo returns the built-in Blogs and Users resources served when no
// resources directory is configured.
func Demo() []*Resource {
	var out []*Resource
	for _, src := range []string{demoUsers, demoBlogs} {
		r, err := Decode(strings.NewReader(src))
		if err != nil {
			panic("registry: demo resource: " + err.Error())
		}
		out = append(out, r)
	}
	return out
}
