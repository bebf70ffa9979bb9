package codec

import (
	"strings"
)

const commentDelim = "# ---"

// parseCommentFrontmatter handles script files carrying their metadata in a
// comment block:
//
//	# ---
//	# key: value
//	# ---
//	<body>
//
// "true"/"false" values coerce to booleans. Any non-comment, non-blank line
// before the opening marker disqualifies the file from having frontmatter at
// all, so shebang-less scripts that merely start with comments are safe.
func parseCommentFrontmatter(content string) Document {
	lines := strings.Split(content, "\n")

	open := -1
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == commentDelim {
			open = i
			break
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		// Real code before the marker: no frontmatter.
		return Document{Frontmatter: NewFrontmatter(), Body: content}
	}
	if open < 0 {
		return Document{Frontmatter: NewFrontmatter(), Body: content}
	}

	closing := -1
	for i := open + 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t") == commentDelim {
			closing = i
			break
		}
	}
	if closing < 0 {
		return Document{Frontmatter: NewFrontmatter(), Body: content}
	}

	fm := NewFrontmatter()
	for _, line := range lines[open+1 : closing] {
		meta, ok := strings.CutPrefix(strings.TrimSpace(line), "#")
		if !ok {
			continue
		}
		key, value, found := strings.Cut(meta, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		raw := strings.TrimSpace(value)
		switch raw {
		case "true":
			fm.Set(key, true)
		case "false":
			fm.Set(key, false)
		default:
			fm.Set(key, stripQuotes(raw))
		}
	}

	body := strings.Join(lines[closing+1:], "\n")
	return Document{Frontmatter: fm, Body: body}
}

// serializeCommentFrontmatter is the inverse: metadata lines rendered as
// "# key: value" between "# ---" markers, then the body.
func serializeCommentFrontmatter(doc Document) string {
	if doc.Frontmatter.Len() == 0 {
		return doc.Body
	}
	var sb strings.Builder
	sb.WriteString(commentDelim)
	sb.WriteByte('\n')
	for _, key := range doc.Frontmatter.Keys() {
		v, _ := doc.Frontmatter.Get(key)
		sb.WriteString("# ")
		sb.WriteString(key)
		sb.WriteString(": ")
		sb.WriteString(renderScalar(v))
		sb.WriteByte('\n')
	}
	sb.WriteString(commentDelim)
	sb.WriteByte('\n')
	sb.WriteString(doc.Body)
	return sb.String()
}
