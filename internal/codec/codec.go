package codec

import (
	"fmt"

	"github.com/starford/othala/internal/apperr"
)

// Format identifiers understood by the codec. The registry maps file
// extensions onto these ids.
const (
	FormatYAMLFrontmatter    = "yaml-frontmatter"
	FormatCommentFrontmatter = "comment-frontmatter"
	FormatJSON               = "json"
	FormatYAML               = "yaml"
	FormatSourceCode         = "source-code"
	FormatBinaryImage        = "binary-image"
	FormatTextImage          = "text-image"
	FormatOpaque             = "opaque"
)

// Document is the parsed form of one text file: structured metadata plus an
// optional body. Formats without a metadata/body split (json, yaml) carry
// everything in Frontmatter; formats without structure (source-code, opaque)
// carry everything in Body.
type Document struct {
	Frontmatter *Frontmatter
	Body        string
}

// Parse converts raw text content into a Document according to format.
func Parse(format, content string) (Document, error) {
	switch format {
	case FormatYAMLFrontmatter:
		return parseYAMLFrontmatter(content), nil
	case FormatCommentFrontmatter:
		return parseCommentFrontmatter(content), nil
	case FormatJSON, FormatYAML:
		return parseStructured(content)
	case FormatSourceCode, FormatTextImage, FormatOpaque:
		return Document{Frontmatter: NewFrontmatter(), Body: content}, nil
	default:
		return Document{}, fmt.Errorf("codec: unknown format %q: %w", format, apperr.ErrParse)
	}
}

// Serialize converts a Document back into file content according to format.
// It is the structural inverse of Parse.
func Serialize(format string, doc Document) (string, error) {
	switch format {
	case FormatYAMLFrontmatter:
		return serializeYAMLFrontmatter(doc), nil
	case FormatCommentFrontmatter:
		return serializeCommentFrontmatter(doc), nil
	case FormatJSON:
		return serializeJSON(doc)
	case FormatYAML:
		return serializeYAML(doc), nil
	case FormatSourceCode, FormatTextImage, FormatOpaque:
		return doc.Body, nil
	default:
		return "", fmt.Errorf("codec: unknown format %q: %w", format, apperr.ErrParse)
	}
}

// IsBinary reports whether format carries an opaque binary payload that the
// codec does not structurally parse.
func IsBinary(format string) bool {
	return format == FormatBinaryImage
}
