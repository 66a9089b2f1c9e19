package view

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"unicode"

	"crudd/internal/crud"
)

// XML renders the serialized view vars below a <response> root. Lists
// repeat their parent element once per item.
type XML struct{}

func (XML) Render(c *crud.Controller) ([]byte, string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if c.Debug {
		enc.Indent("", "  ")
	}
	root := xml.StartElement{Name: xml.Name{Local: "response"}}
	if err := enc.EncodeToken(root); err != nil {
		return nil, "", err
	}
	for _, e := range entries(c) {
		v, ok := c.Get(e.Var)
		if !ok {
			continue
		}
		g, err := generic(v)
		if err != nil {
			return nil, "", fmt.Errorf("encode %s: %w", e.Var, err)
		}
		if err := writeXML(enc, e.Key, g); err != nil {
			return nil, "", err
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, "", err
	}
	if err := enc.Flush(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "application/xml; charset=utf-8", nil
}

func writeXML(enc *xml.Encoder, name string, v any) error {
	if list, ok := v.([]any); ok {
		for _, item := range list {
			if err := writeXML(enc, name, item); err != nil {
				return err
			}
		}
		return nil
	}
	start := xml.StartElement{Name: xml.Name{Local: elementName(name)}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
	case map[string]any:
		for _, k := range sortedKeys(t) {
			if err := writeXML(enc, k, t[k]); err != nil {
				return err
			}
		}
	case json.Number:
		if err := enc.EncodeToken(xml.CharData(t.String())); err != nil {
			return err
		}
	default:
		if err := enc.EncodeToken(xml.CharData(fmt.Sprint(t))); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// elementName maps an arbitrary key to a valid XML element name.
func elementName(k string) string {
	if k == "" {
		return "item"
	}
	var b strings.Builder
	for i, r := range k {
		switch {
		case unicode.IsLetter(r), r == '_':
			b.WriteRune(r)
		case unicode.IsDigit(r), r == '-', r == '.':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
