package view

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"crudd/internal/common/inflect"
	"crudd/internal/crud"
	"crudd/internal/orm"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
{{- range .Flash}}
<div class="{{.Class}}">{{.Text}}</div>
{{- end}}
<h1>{{.Title}}</h1>
{{- range .Sections}}
<section id="{{.Name}}">
{{- if .Entity}}
<dl>
{{- range .Entity}}
<dt>{{.Name}}</dt><dd>{{.Value}}{{range .Errors}} <span class="error">{{.}}</span>{{end}}</dd>
{{- end}}
</dl>
{{- else if .Columns}}
<table>
<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
{{- else if .List}}
<ul>
{{- range .List}}
<li data-key="{{.Key}}">{{.Value}}</li>
{{- end}}
</ul>
{{- else}}
<p>No records.</p>
{{- end}}
</section>
{{- end}}
</body>
</html>
`

// HTML renders entities, result sets and lists found in the view vars as
// a plain page, together with the queued flash messages.
type HTML struct {
	tmpl *template.Template
}

// NewHTML parses the page template.
func NewHTML() *HTML {
	return &HTML{tmpl: template.Must(template.New("page").Parse(pageTemplate))}
}

type flashLine struct {
	Class string
	Text  string
}

type field struct {
	Name   string
	Value  any
	Errors []string
}

type section struct {
	Name    string
	Entity  []field
	Columns []string
	Rows    [][]any
	List    []orm.ListItem
}

type page struct {
	Title    string
	Flash    []flashLine
	Sections []section
}

func (h *HTML) Render(c *crud.Controller) ([]byte, string, error) {
	p := page{Title: inflect.Humanize(inflect.Underscore(c.Name))}
	if t := c.Template(); t != "" {
		p.Title += " " + strings.ToLower(t)
	}
	if bag, ok := c.Flash.(interface {
		Messages(key string) []crud.FlashMessage
	}); ok {
		for _, m := range bag.Messages("") {
			p.Flash = append(p.Flash, flashLine{Class: fmt.Sprint(m.Params["class"]), Text: m.Text})
		}
	}
	for _, name := range c.ViewVarNames() {
		v, _ := c.Get(name)
		switch t := v.(type) {
		case *orm.Entity:
			if t != nil {
				p.Sections = append(p.Sections, section{Name: name, Entity: entityFields(t)})
			}
		case *orm.ResultSet:
			p.Sections = append(p.Sections, resultSection(name, t))
		case []orm.ListItem:
			p.Sections = append(p.Sections, section{Name: name, List: t})
		}
	}
	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, p); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "text/html; charset=utf-8", nil
}

func entityFields(e *orm.Entity) []field {
	errs := e.Errors()
	names := e.Fields()
	for f := range errs {
		if !e.Has(f) {
			names = append(names, f)
		}
	}
	sort.Strings(names)
	out := make([]field, 0, len(names))
	for _, n := range names {
		f := field{Name: n, Value: e.Get(n)}
		for _, msg := range errs[n] {
			f.Errors = append(f.Errors, msg)
		}
		sort.Strings(f.Errors)
		out = append(out, f)
	}
	return out
}

func resultSection(name string, rs *orm.ResultSet) section {
	s := section{Name: name}
	if rs.Len() == 0 {
		return s
	}
	s.Columns = rs.Items[0].Fields()
	sort.Strings(s.Columns)
	for _, e := range rs.Items {
		row := make([]any, len(s.Columns))
		for i, col := range s.Columns {
			row[i] = e.Get(col)
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}
