package view

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/sjson"

	"crudd/internal/crud"
)

// JSON renders the serialized view vars as one object, keys in serialize
// order. Debug controllers get indented output.
type JSON struct{}

func (JSON) Render(c *crud.Controller) ([]byte, string, error) {
	out := []byte("{}")
	for _, e := range entries(c) {
		v, ok := c.Get(e.Var)
		if !ok {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("encode %s: %w", e.Var, err)
		}
		if out, err = sjson.SetRawBytes(out, escapeKey(e.Key), raw); err != nil {
			return nil, "", fmt.Errorf("set %s: %w", e.Key, err)
		}
	}
	if c.Debug {
		var buf bytes.Buffer
		if err := json.Indent(&buf, out, "", "    "); err == nil {
			out = buf.Bytes()
		}
	}
	return out, "application/json; charset=utf-8", nil
}

var keyEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)

// escapeKey makes a literal object key safe as an sjson path.
func escapeKey(k string) string { return keyEscaper.Replace(k) }
