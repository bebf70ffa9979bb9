// Package codec implements the per-format parser/serializer pairs that map
// raw file content to frontmatter-plus-body documents and back. Round-trip
// holds for every format: Parse(Serialize(doc)) == doc modulo key order and
// quoting style.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Frontmatter is an insertion-ordered string-keyed metadata map. Serializers
// emit keys in the order they were first set, so a loaded document keeps its
// on-disk key order across a save.
type Frontmatter struct {
	keys   []string
	values map[string]any
}

// NewFrontmatter creates an empty frontmatter map.
func NewFrontmatter() *Frontmatter {
	return &Frontmatter{values: make(map[string]any)}
}

// Set stores a value under key, preserving the key's original position if it
// was already present.
func (fm *Frontmatter) Set(key string, value any) {
	if fm.values == nil {
		fm.values = make(map[string]any)
	}
	if _, ok := fm.values[key]; !ok {
		fm.keys = append(fm.keys, key)
	}
	fm.values[key] = value
}

// Get returns the value stored under key.
func (fm *Frontmatter) Get(key string) (any, bool) {
	if fm == nil || fm.values == nil {
		return nil, false
	}
	v, ok := fm.values[key]
	return v, ok
}

// GetString returns the value under key rendered as a string, or "" when the
// key is absent.
func (fm *Frontmatter) GetString(key string) string {
	v, ok := fm.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Delete removes key and its position.
func (fm *Frontmatter) Delete(key string) {
	if fm == nil || fm.values == nil {
		return
	}
	if _, ok := fm.values[key]; !ok {
		return
	}
	delete(fm.values, key)
	for i, k := range fm.keys {
		if k == key {
			fm.keys = append(fm.keys[:i], fm.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (fm *Frontmatter) Keys() []string {
	if fm == nil {
		return nil
	}
	out := make([]string, len(fm.keys))
	copy(out, fm.keys)
	return out
}

// Len returns the number of keys.
func (fm *Frontmatter) Len() int {
	if fm == nil {
		return 0
	}
	return len(fm.keys)
}

// Clone returns a shallow copy sharing no internal state with the receiver.
func (fm *Frontmatter) Clone() *Frontmatter {
	out := NewFrontmatter()
	if fm == nil {
		return out
	}
	for _, k := range fm.keys {
		out.Set(k, fm.values[k])
	}
	return out
}

// MarshalJSON emits a JSON object with keys in insertion order.
func (fm *Frontmatter) MarshalJSON() ([]byte, error) {
	if fm == nil || len(fm.keys) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range fm.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(fm.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON fills the frontmatter from a JSON object. Key order follows
// the document order of the input.
func (fm *Frontmatter) UnmarshalJSON(data []byte) error {
	fm.keys = nil
	fm.values = make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("codec: frontmatter must be a JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		v, err := decodeJSONValue(raw)
		if err != nil {
			return err
		}
		fm.Set(key, v)
	}
	_, err = dec.Token() // closing brace
	return err
}

// decodeJSONValue decodes raw JSON into the canonical in-memory shapes used
// by frontmatter values: string, bool, int64, float64, []any, map[string]any.
func decodeJSONValue(raw json.RawMessage) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeValue(v), nil
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalizeValue(t[k])
		}
		return t
	default:
		return v
	}
}
