package registry

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Override is a partial per-extension config supplied by the user override
// file. Scalar fields replace the core value when present; object-valued
// fields (Schema) are deep-merged key-by-key, so a partial override only
// needs to specify what it changes.
type Override struct {
	Parser     *string           `yaml:"parser"`
	DocType    *string           `yaml:"doc_type"`
	BodyField  *string           `yaml:"body_field"`
	Language   *string           `yaml:"language"`
	Binary     *bool             `yaml:"binary"`
	Companions []CompanionConfig `yaml:"companions"`
	Schema     map[string]any    `yaml:"schema"`
}

// ParseOverrides decodes the user override document, a mapping from
// extension to partial config.
func ParseOverrides(content string) (map[string]Override, error) {
	out := make(map[string]Override)
	if err := yaml.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("registry: parse overrides: %w", err)
	}
	return out, nil
}

// overrideProvider adapts a merged config set back into a Provider so the
// result of Merge composes with New.
type overrideProvider struct {
	configs []ExtensionConfig
}

func (p overrideProvider) Extensions() []ExtensionConfig { return p.configs }

// Merge applies user overrides to the core provider set and returns the
// resulting registry. It is a pure function over the two inputs: neither is
// mutated, and an extension appearing only in overrides becomes a new entry.
func Merge(core *Registry, overrides map[string]Override) *Registry {
	merged := make([]ExtensionConfig, 0, len(core.configs))
	seen := make(map[string]struct{})

	for _, cfg := range core.configs {
		if ov, ok := overrides[cfg.Extension]; ok {
			cfg = applyOverride(cfg, ov)
		}
		seen[cfg.Extension] = struct{}{}
		merged = append(merged, cfg)
	}

	// Extensions declared only in the override file.
	extra := make([]string, 0, len(overrides))
	for ext := range overrides {
		if _, ok := seen[strings.ToLower(ext)]; !ok {
			extra = append(extra, ext)
		}
	}
	sort.Strings(extra)
	for _, ext := range extra {
		cfg := Fallback("x" + strings.ToLower(ext))
		cfg.Extension = strings.ToLower(ext)
		merged = append(merged, applyOverride(cfg, overrides[ext]))
	}

	return New(overrideProvider{configs: merged})
}

func applyOverride(cfg ExtensionConfig, ov Override) ExtensionConfig {
	if ov.Parser != nil {
		cfg.Parser = *ov.Parser
	}
	if ov.DocType != nil {
		cfg.DocType = *ov.DocType
	}
	if ov.BodyField != nil {
		cfg.BodyField = *ov.BodyField
	}
	if ov.Language != nil {
		cfg.Language = *ov.Language
	}
	if ov.Binary != nil {
		cfg.Binary = *ov.Binary
	}
	if ov.Companions != nil {
		cfg.Companions = append([]CompanionConfig(nil), ov.Companions...)
	}
	if len(ov.Schema) > 0 {
		cfg.Schema = deepMerge(cfg.Schema, ov.Schema)
	}
	return cfg
}

// deepMerge merges override into base key-by-key, recursing into nested
// maps. Neither input map is mutated.
func deepMerge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if ovMap, ok := v.(map[string]any); ok {
			if baseMap, ok := out[k].(map[string]any); ok {
				out[k] = deepMerge(baseMap, ovMap)
				continue
			}
		}
		out[k] = v
	}
	return out
}
