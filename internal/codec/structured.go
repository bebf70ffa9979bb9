package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/othala/internal/apperr"
)

// parseStructured handles whole-file structured documents (json, yaml): the
// entire file is one mapping and there is no body split. JSON being a YAML
// subset, both formats go through the order-preserving YAML node decoder.
func parseStructured(content string) (Document, error) {
	if strings.TrimSpace(content) == "" {
		return Document{Frontmatter: NewFrontmatter()}, nil
	}
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(content), &root); err != nil {
		return Document{}, fmt.Errorf("codec: structured document: %v: %w", err, apperr.ErrParse)
	}
	if len(root.Content) == 0 {
		return Document{Frontmatter: NewFrontmatter()}, nil
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return Document{}, fmt.Errorf("codec: structured document is not a mapping: %w", apperr.ErrParse)
	}
	fm := NewFrontmatter()
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		v, err := decodeYAMLNode(mapping.Content[i+1])
		if err != nil {
			return Document{}, fmt.Errorf("codec: structured value %q: %v: %w", mapping.Content[i].Value, err, apperr.ErrParse)
		}
		fm.Set(mapping.Content[i].Value, v)
	}
	return Document{Frontmatter: fm}, nil
}

// serializeJSON emits the document fields as a two-space indented JSON
// object, keys in insertion order.
func serializeJSON(doc Document) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	keys := doc.Frontmatter.Keys()
	for i, key := range keys {
		v, _ := doc.Frontmatter.Get(key)
		kb, err := json.Marshal(key)
		if err != nil {
			return "", fmt.Errorf("codec: marshal key %q: %w", key, err)
		}
		vb, err := json.MarshalIndent(v, "  ", "  ")
		if err != nil {
			return "", fmt.Errorf("codec: marshal value for %q: %w", key, err)
		}
		buf.WriteString("  ")
		buf.Write(kb)
		buf.WriteString(": ")
		buf.Write(vb)
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.String(), nil
}

// serializeYAML emits the document fields as top-level YAML entries, keys in
// insertion order, scalar rendering shared with the frontmatter serializer.
func serializeYAML(doc Document) string {
	var sb strings.Builder
	for _, key := range doc.Frontmatter.Keys() {
		v, _ := doc.Frontmatter.Get(key)
		sb.WriteString(key)
		sb.WriteString(": ")
		sb.WriteString(renderScalar(v))
		sb.WriteByte('\n')
	}
	return sb.String()
}
