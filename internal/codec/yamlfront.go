package codec

import (
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---"

// parseYAMLFrontmatter splits a "---\n<yaml>\n---\n<body>" document. A file
// without a leading delimiter is all body with empty frontmatter. When the
// YAML block fails to parse, a line-oriented key: value scanner recovers as
// much metadata as possible instead of failing the whole file.
func parseYAMLFrontmatter(content string) Document {
	if !strings.HasPrefix(content, frontmatterDelim+"\n") && content != frontmatterDelim {
		return Document{Frontmatter: NewFrontmatter(), Body: content}
	}

	rest := strings.TrimPrefix(content, frontmatterDelim+"\n")
	idx := findClosingDelim(rest)
	if idx < 0 {
		// No closing delimiter: the whole file is body.
		return Document{Frontmatter: NewFrontmatter(), Body: content}
	}

	block := rest[:idx]
	body := rest[idx:]
	body = strings.TrimPrefix(body, frontmatterDelim)
	body = strings.TrimPrefix(body, "\n")

	fm, ok := decodeYAMLMapping([]byte(block))
	if !ok {
		fm = scanKeyValueLines(block)
	}
	return Document{Frontmatter: fm, Body: body}
}

// findClosingDelim returns the offset in rest where a closing "---" line
// starts, or -1.
func findClosingDelim(rest string) int {
	if strings.HasPrefix(rest, frontmatterDelim+"\n") || rest == frontmatterDelim {
		return 0
	}
	for _, marker := range []string{"\n" + frontmatterDelim + "\n", "\n" + frontmatterDelim} {
		if i := strings.Index(rest, marker); i >= 0 {
			if marker == "\n"+frontmatterDelim && i+len(marker) != len(rest) {
				continue
			}
			return i + 1
		}
	}
	return -1
}

// decodeYAMLMapping parses a YAML mapping preserving key order via the node
// API. Returns ok=false when the block is not a valid mapping.
func decodeYAMLMapping(block []byte) (*Frontmatter, bool) {
	var root yaml.Node
	if err := yaml.Unmarshal(block, &root); err != nil {
		return nil, false
	}
	if len(root.Content) == 0 {
		return NewFrontmatter(), true
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, false
	}
	fm := NewFrontmatter()
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		v, err := decodeYAMLNode(mapping.Content[i+1])
		if err != nil {
			return nil, false
		}
		fm.Set(mapping.Content[i].Value, v)
	}
	return fm, true
}

const yamlTimestampTag = "!!timestamp"

// decodeYAMLNode decodes one value node onto the canonical value shapes
// shared with the JSON path. Date-like scalars keep their literal text:
// yaml.v3 would resolve them to time.Time, whose String form does not
// survive re-serialization.
func decodeYAMLNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := decodeYAMLNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := decodeYAMLNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[n.Content[i].Value] = v
		}
		return out, nil
	default:
		if n.Tag == yamlTimestampTag {
			return n.Value, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return normalizeYAMLValue(v), nil
	}
}

// normalizeYAMLValue brings yaml.v3 decode output onto the canonical value
// shapes shared with the JSON path. The time.Time case covers values that
// arrive through alias resolution, where the literal text is gone.
func normalizeYAMLValue(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case []any:
		for i := range t {
			t[i] = normalizeYAMLValue(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalizeYAMLValue(t[k])
		}
		return t
	default:
		return v
	}
}

// scanKeyValueLines is the best-effort fallback for malformed YAML blocks:
// every "key: value" line contributes a string entry, quotes stripped.
func scanKeyValueLines(block string) *Frontmatter {
	fm := NewFrontmatter()
	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, value, found := strings.Cut(trimmed, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fm.Set(key, stripQuotes(strings.TrimSpace(value)))
	}
	return fm
}

// serializeYAMLFrontmatter renders frontmatter keys in insertion order
// between --- delimiters followed by the body. A document with no
// frontmatter serializes to its body alone.
func serializeYAMLFrontmatter(doc Document) string {
	if doc.Frontmatter.Len() == 0 {
		return doc.Body
	}
	var sb strings.Builder
	sb.WriteString(frontmatterDelim)
	sb.WriteByte('\n')
	for _, key := range doc.Frontmatter.Keys() {
		v, _ := doc.Frontmatter.Get(key)
		sb.WriteString(key)
		sb.WriteString(": ")
		sb.WriteString(renderScalar(v))
		sb.WriteByte('\n')
	}
	sb.WriteString(frontmatterDelim)
	sb.WriteByte('\n')
	sb.WriteString(doc.Body)
	return sb.String()
}
