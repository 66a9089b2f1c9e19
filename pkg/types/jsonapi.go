package types

// JSONAPIMediaType is the JSON:API media type for Accept and Content-Type.
const JSONAPIMediaType = "application/vnd.api+json"

// JSONAPIVersion is emitted in the top-level `jsonapi` member.
const JSONAPIVersion = "1.0"

// JSONAPIDocument is a JSON:API top-level document. Data is a *Resource,
// a []Resource or nil.
type JSONAPIDocument struct {
	Data     any             `json:"data,omitempty"`
	Errors   []JSONAPIError  `json:"errors,omitempty"`
	Included []JSONAPIObject `json:"included,omitempty"`
	Links    map[string]any  `json:"links,omitempty"`
	Meta     map[string]any  `json:"meta,omitempty"`
	JSONAPI  map[string]any  `json:"jsonapi,omitempty"`
	// Query holds the statements logged while serving a debug request.
	Query any `json:"query,omitempty"`
}

// JSONAPIObject is a resource object.
type JSONAPIObject struct {
	Type          string                         `json:"type"`
	ID            string                         `json:"id"`
	Attributes    map[string]any                 `json:"attributes,omitempty"`
	Relationships map[string]JSONAPIRelationship `json:"relationships,omitempty"`
	Links         map[string]string              `json:"links,omitempty"`
}

// JSONAPIIdentifier is a resource identifier object.
type JSONAPIIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// JSONAPIRelationship holds a to-one (*JSONAPIIdentifier) or to-many
// ([]JSONAPIIdentifier) linkage.
type JSONAPIRelationship struct {
	Data  any               `json:"data"`
	Links map[string]string `json:"links,omitempty"`
}

// JSONAPIError is a JSON:API error object.
type JSONAPIError struct {
	Status string              `json:"status,omitempty"`
	Code   string              `json:"code,omitempty"`
	Title  string              `json:"title,omitempty"`
	Detail string              `json:"detail,omitempty"`
	Source *JSONAPIErrorSource `json:"source,omitempty"`
	Links  map[string]string   `json:"links,omitempty"`
}

// JSONAPIErrorSource points at the offending document member.
type JSONAPIErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// JSONAPIPagination is the `_pagination` view var consumed by the JSON:API
// view for top-level links and meta.
type JSONAPIPagination struct {
	Self        string `json:"self"`
	First       string `json:"first"`
	Last        string `json:"last"`
	Prev        string `json:"prev,omitempty"`
	Next        string `json:"next,omitempty"`
	RecordCount int    `json:"record_count"`
	PageCount   int    `json:"page_count"`
	PageLimit   int    `json:"page_limit"`
}
