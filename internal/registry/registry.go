// Package registry maps file extensions to parsing, serialization, and
// document-type behavior. The registry is an immutable value computed once at
// startup from the built-in providers plus an optional user override set; it
// is injected into the loader and persistence layers rather than consulted
// through any mutable global.
package registry

import (
	"sort"
	"strings"

	"github.com/starford/othala/internal/codec"
)

// CompanionConfig declares a secondary file whose content is hoisted into a
// named field of its primary card. Matching is by filename suffix.
type CompanionConfig struct {
	Suffix string `yaml:"suffix"`
	Field  string `yaml:"field"`
}

// ExtensionConfig describes how files with one extension are handled.
type ExtensionConfig struct {
	Extension  string            `yaml:"extension"`
	Parser     string            `yaml:"parser"`
	DocType    string            `yaml:"doc_type"`
	BodyField  string            `yaml:"body_field"`
	Language   string            `yaml:"language,omitempty"`
	Binary     bool              `yaml:"binary,omitempty"`
	Companions []CompanionConfig `yaml:"companions,omitempty"`
	Schema     map[string]any    `yaml:"schema,omitempty"`
}

// Provider is implemented by each document-type provider. The registry is
// the union of all providers' declarations.
type Provider interface {
	Extensions() []ExtensionConfig
}

// Registry resolves filenames to extension configs.
type Registry struct {
	configs []ExtensionConfig // sorted longest extension first
}

// New builds a registry from the given providers. Later providers win on
// duplicate extensions.
func New(providers ...Provider) *Registry {
	byExt := make(map[string]ExtensionConfig)
	var order []string
	for _, p := range providers {
		for _, cfg := range p.Extensions() {
			ext := strings.ToLower(cfg.Extension)
			if _, seen := byExt[ext]; !seen {
				order = append(order, ext)
			}
			cfg.Extension = ext
			byExt[ext] = cfg
		}
	}
	configs := make([]ExtensionConfig, 0, len(order))
	for _, ext := range order {
		configs = append(configs, byExt[ext])
	}
	// Longest-first so ".bookmark.json" wins over ".json"; name order breaks
	// ties for determinism.
	sort.SliceStable(configs, func(i, j int) bool {
		if len(configs[i].Extension) != len(configs[j].Extension) {
			return len(configs[i].Extension) > len(configs[j].Extension)
		}
		return configs[i].Extension < configs[j].Extension
	})
	return &Registry{configs: configs}
}

// Resolve returns the config for filename by testing candidate extensions
// longest-first, case-insensitively.
func (r *Registry) Resolve(filename string) (ExtensionConfig, bool) {
	lower := strings.ToLower(filename)
	for _, cfg := range r.configs {
		if strings.HasSuffix(lower, cfg.Extension) && len(lower) > len(cfg.Extension) {
			return cfg, true
		}
	}
	return ExtensionConfig{}, false
}

// Stem returns filename with the resolved extension removed, or the filename
// minus a plain extension when nothing resolves.
func (r *Registry) Stem(filename string) string {
	if cfg, ok := r.Resolve(filename); ok {
		return filename[:len(filename)-len(cfg.Extension)]
	}
	if i := strings.LastIndex(filename, "."); i > 0 {
		return filename[:i]
	}
	return filename
}

// CompanionMatch tests filename against every extension's companion
// declarations and returns the matched declaration plus the primary stem.
func (r *Registry) CompanionMatch(filename string) (CompanionConfig, string, bool) {
	lower := strings.ToLower(filename)
	for _, cfg := range r.configs {
		for _, comp := range cfg.Companions {
			suffix := strings.ToLower(comp.Suffix)
			if strings.HasSuffix(lower, suffix) && len(lower) > len(suffix) {
				return comp, filename[:len(filename)-len(suffix)], true
			}
		}
	}
	return CompanionConfig{}, "", false
}

// DefaultExtensionFor returns the first config whose default document type is
// docType; used to pick an extension for brand-new cards.
func (r *Registry) DefaultExtensionFor(docType string) (ExtensionConfig, bool) {
	// Prefer the shortest matching extension so new notes land on ".md"
	// rather than a specialised compound extension.
	var best ExtensionConfig
	found := false
	for _, cfg := range r.configs {
		if cfg.DocType != docType {
			continue
		}
		if !found || len(cfg.Extension) < len(best.Extension) {
			best, found = cfg, true
		}
	}
	return best, found
}

// Configs returns all registered extension configs, longest extension first.
func (r *Registry) Configs() []ExtensionConfig {
	out := make([]ExtensionConfig, len(r.configs))
	copy(out, r.configs)
	return out
}

// DocTypes returns the distinct default document types, sorted.
func (r *Registry) DocTypes() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, cfg := range r.configs {
		if _, ok := seen[cfg.DocType]; !ok {
			seen[cfg.DocType] = struct{}{}
			out = append(out, cfg.DocType)
		}
	}
	sort.Strings(out)
	return out
}

// DocTypeOpaque is the synthesized fallback type for files matching no
// registered extension. Such files are never dropped from the tree.
const DocTypeOpaque = "file"

// Fallback synthesizes an opaque-file config for an unresolved filename so
// the tree's structure is never silently incomplete.
func Fallback(filename string) ExtensionConfig {
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = strings.ToLower(filename[i:])
	}
	return ExtensionConfig{
		Extension: ext,
		Parser:    codec.FormatOpaque,
		DocType:   DocTypeOpaque,
		BodyField: "content",
	}
}
