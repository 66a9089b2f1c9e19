package listener

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"crudd/internal/common/inflect"
	"crudd/internal/crud"
	"crudd/pkg/types"
)

// DocumentError reports an invalid JSON:API request document. It unwraps
// to crud.ErrValidation.
type DocumentError struct {
	Errors []types.JSONAPIError
}

func (e *DocumentError) Error() string {
	if len(e.Errors) == 1 {
		return "A validation error occurred"
	}
	return fmt.Sprintf("%d validation errors occurred", len(e.Errors))
}

func (e *DocumentError) StatusCode() int { return http.StatusUnprocessableEntity }
func (e *DocumentError) Unwrap() error { return crud.ErrValidation }

const specURL = "http://jsonapi.org/format/"

// documentValidator checks request documents against the JSON:API
// create and update rules.
type documentValidator struct {
	doc        gjson.Result
	aboutLinks bool
	errs       []types.JSONAPIError
}

func newDocumentValidator(body map[string]any, aboutLinks bool) (*documentValidator, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &documentValidator{doc: gjson.ParseBytes(raw), aboutLinks: aboutLinks}, nil
}

// ValidateCreate requires primary data with a string type; a client
// generated id must be a UUID.
func (v *documentValidator) ValidateCreate() error {
	if !v.mustHavePrimaryData() {
		return v.result()
	}
	v.mustHaveType()
	v.mayHaveUUID()
	v.mayHaveRelationships()
	return v.result()
}

// ValidateUpdate requires primary data with string type and id.
func (v *documentValidator) ValidateUpdate() error {
	if !v.mustHavePrimaryData() {
		return v.result()
	}
	v.mustHaveType()
	v.mustHaveID()
	v.mayHaveRelationships()
	return v.result()
}

func (v *documentValidator) result() error {
	if len(v.errs) == 0 {
		return nil
	}
	return &DocumentError{Errors: v.errs}
}

func (v *documentValidator) add(pointer, title, detail, about string) {
	e := types.JSONAPIError{
		Status: strconv.Itoa(http.StatusUnprocessableEntity),
		Title:  title,
		Detail: detail,
		Source: &types.JSONAPIErrorSource{Pointer: pointer},
	}
	if v.aboutLinks {
		e.Links = map[string]string{"about": specURL + about}
	}
	v.errs = append(v.errs, e)
}

func (v *documentValidator) mustHavePrimaryData() bool {
	if v.doc.Get("data").Exists() {
		return true
	}
	v.add("", "_required", "Document does not contain top-level member 'data'", "#document-top-level")
	return false
}

func (v *documentValidator) mustHaveType() {
	t := v.doc.Get("data.type")
	switch {
	case !t.Exists():
		v.add("/data", "_required", "Primary data does not contain member 'type'", "#crud-creating")
	case t.Type != gjson.String:
		v.add("/data/type", "_notString", "Primary data member 'type' is not a string", "#document-resource-object-identification")
	}
}

func (v *documentValidator) mustHaveID() {
	id := v.doc.Get("data.id")
	switch {
	case !id.Exists():
		v.add("/data", "_required", "Primary data does not contain member 'id'", "#crud-updating")
	case id.Type != gjson.String:
		v.add("/data/id", "_notString", "Primary data member 'id' is not a string", "#document-resource-object-identification")
	}
}

func (v *documentValidator) mayHaveUUID() {
	id := v.doc.Get("data.id")
	if !id.Exists() {
		return
	}
	if _, err := uuid.Parse(id.String()); err == nil && id.Type == gjson.String {
		return
	}
	v.add("/data/id", "_notUuid", "Primary data member 'id' is not a valid UUID", "#crud-creating-client-ids")
}

func (v *documentValidator) mayHaveRelationships() {
	rels := v.doc.Get("data.relationships")
	if !rels.Exists() {
		return
	}
	if !rels.IsObject() || len(rels.Map()) == 0 {
		v.add("/data/relationships", "_required", "Relationships object does not contain any members", "#crud-creating")
		return
	}
	rels.ForEach(func(name, rel gjson.Result) bool {
		pointer := "/data/relationships/" + name.String()
		data := rel.Get("data")
		switch {
		case !data.Exists():
			v.add(pointer, "_required", "Relationships object does not contain member 'data'", "#crud-creating")
		case data.Type == gjson.Null:
		case inflect.Singular(name.String()) == name.String() && !data.IsArray():
			v.identifier(pointer+"/data", data)
		default:
			for i, item := range data.Array() {
				v.identifier(pointer+"/data/"+strconv.Itoa(i), item)
			}
		}
		return true
	})
}

// identifier checks a resource identifier object.
func (v *documentValidator) identifier(pointer string, obj gjson.Result) {
	for _, member := range []string{"type", "id"} {
		m := obj.Get(member)
		switch {
		case !m.Exists():
			v.add(pointer, "_required", "Relationship data does not contain member '"+member+"'", "#crud-creating")
		case m.Type != gjson.String:
			v.add(pointer+"/"+member, "_notString", "Relationship data member '"+member+"' is not a string", "#crud-creating")
		}
	}
}

// flattenDocument converts a JSON:API document into flat entity data:
// the attributes, the primary id and a <singular type>_id foreign key per
// relationship.
func flattenDocument(body map[string]any) map[string]any {
	doc, err := json.Marshal(body)
	if err != nil {
		return body
	}
	data := gjson.GetBytes(doc, "data")
	out := map[string]any{}
	if id := data.Get("id"); id.Exists() {
		out["id"] = id.Value()
	}
	if attrs, ok := data.Get("attributes").Value().(map[string]any); ok {
		for k, v := range attrs {
			out[k] = v
		}
	}
	data.Get("relationships").ForEach(func(_, rel gjson.Result) bool {
		ident := rel.Get("data")
		if ident.IsArray() {
			ident = ident.Get("0")
		}
		if !ident.Exists() || ident.Type == gjson.Null {
			return true
		}
		key := inflect.Singular(strings.ToLower(ident.Get("type").String())) + "_id"
		out[key] = ident.Get("id").Value()
		return true
	})
	return out
}
