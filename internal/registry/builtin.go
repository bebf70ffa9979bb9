package registry

import "github.com/starford/othala/internal/codec"

// MarkdownProvider declares frontmatter-delimited markdown notes.
type MarkdownProvider struct{}

func (MarkdownProvider) Extensions() []ExtensionConfig {
	return []ExtensionConfig{
		{
			Extension: ".md",
			Parser:    codec.FormatYAMLFrontmatter,
			DocType:   "note",
			BodyField: "content",
		},
	}
}

// BookmarkProvider declares JSON bookmark documents.
type BookmarkProvider struct{}

func (BookmarkProvider) Extensions() []ExtensionConfig {
	return []ExtensionConfig{
		{
			Extension: ".bookmark.json",
			Parser:    codec.FormatJSON,
			DocType:   "bookmark",
			Schema: map[string]any{
				"url":   "string",
				"title": "string",
				"tags":  "array",
			},
		},
	}
}

// QuizProvider declares JSON quiz documents.
type QuizProvider struct{}

func (QuizProvider) Extensions() []ExtensionConfig {
	return []ExtensionConfig{
		{
			Extension: ".quiz.json",
			Parser:    codec.FormatJSON,
			DocType:   "quiz",
			Schema: map[string]any{
				"questions": "array",
				"rubric":    "object",
			},
		},
	}
}

// CodeProvider declares comment-frontmatter script cards with an HTML output
// companion.
type CodeProvider struct{}

func (CodeProvider) Extensions() []ExtensionConfig {
	return []ExtensionConfig{
		{
			Extension: ".code.py",
			Parser:    codec.FormatCommentFrontmatter,
			DocType:   "code",
			BodyField: "code",
			Language:  "python",
			Companions: []CompanionConfig{
				{Suffix: ".output.html", Field: "output"},
			},
		},
		{
			Extension: ".code.js",
			Parser:    codec.FormatCommentFrontmatter,
			DocType:   "code",
			BodyField: "code",
			Language:  "javascript",
			Companions: []CompanionConfig{
				{Suffix: ".output.html", Field: "output"},
			},
		},
		{
			Extension: ".py",
			Parser:    codec.FormatSourceCode,
			DocType:   "source",
			BodyField: "code",
			Language:  "python",
		},
	}
}

// DataProvider declares plain structured documents.
type DataProvider struct{}

func (DataProvider) Extensions() []ExtensionConfig {
	return []ExtensionConfig{
		{Extension: ".json", Parser: codec.FormatJSON, DocType: "data"},
		{Extension: ".yaml", Parser: codec.FormatYAML, DocType: "data"},
		{Extension: ".yml", Parser: codec.FormatYAML, DocType: "data"},
	}
}

// ImageProvider declares opaque image payloads.
type ImageProvider struct{}

func (ImageProvider) Extensions() []ExtensionConfig {
	return []ExtensionConfig{
		{Extension: ".png", Parser: codec.FormatBinaryImage, DocType: "image", Binary: true},
		{Extension: ".jpg", Parser: codec.FormatBinaryImage, DocType: "image", Binary: true},
		{Extension: ".jpeg", Parser: codec.FormatBinaryImage, DocType: "image", Binary: true},
		{Extension: ".gif", Parser: codec.FormatBinaryImage, DocType: "image", Binary: true},
		{Extension: ".svg", Parser: codec.FormatTextImage, DocType: "image"},
	}
}

// BuiltinProviders returns the core provider set in declaration order.
func BuiltinProviders() []Provider {
	return []Provider{
		MarkdownProvider{},
		BookmarkProvider{},
		QuizProvider{},
		CodeProvider{},
		DataProvider{},
		ImageProvider{},
	}
}

// Builtin returns a registry of the core built-in configs.
func Builtin() *Registry {
	return New(BuiltinProviders()...)
}
