package notebook

import (
	"fmt"
	"log/slog"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/registry"
	"github.com/starford/othala/internal/storage"
)

// Well-known files inside the hidden configuration directory.
const (
	SettingsFile   = "settings.yaml"
	ExtensionsFile = "extensions.yaml"
	ThemeFile      = "theme.css"
)

// SectionRecord declares one section's position and visibility in settings.
type SectionRecord struct {
	Directory string `yaml:"directory" json:"directory"`
	Visible   bool   `yaml:"visible" json:"visible"`
}

// SortPolicy controls default card ordering within a section.
type SortPolicy struct {
	Field     string `yaml:"field" json:"field"` // "modified", "created", or "title"
	Ascending bool   `yaml:"ascending" json:"ascending"`
}

// Settings is the single structural manifest of a notebook. Every field has
// a hard-coded default so a hand-edited or fresh file always normalizes to a
// complete typed object.
type Settings struct {
	Title    string          `yaml:"title" json:"title"`
	Subtitle string          `yaml:"subtitle" json:"subtitle"`
	Authors  []string        `yaml:"authors" json:"authors"`
	Sections []SectionRecord `yaml:"sections" json:"sections"`
	// DocTypes lists the enabled document-type names.
	DocTypes []string        `yaml:"doc_types" json:"doc_types"`
	Sort     SortPolicy      `yaml:"sort" json:"sort"`
	Flags    map[string]bool `yaml:"flags" json:"flags"`
}

// DefaultSettings returns a complete settings object with every default
// applied.
func DefaultSettings() Settings {
	return Settings{
		Title:    "Notebook",
		Authors:  []string{},
		Sections: []SectionRecord{},
		DocTypes: registry.Builtin().DocTypes(),
		Sort:     SortPolicy{Field: "modified", Ascending: false},
		Flags:    map[string]bool{},
	}
}

// Normalize fills any missing field with its default, in place.
func (s *Settings) Normalize() {
	def := DefaultSettings()
	if s.Title == "" {
		s.Title = def.Title
	}
	if s.Authors == nil {
		s.Authors = def.Authors
	}
	if s.Sections == nil {
		s.Sections = def.Sections
	}
	if len(s.DocTypes) == 0 {
		s.DocTypes = def.DocTypes
	}
	switch s.Sort.Field {
	case "modified", "created", "title":
	default:
		s.Sort = def.Sort
	}
	if s.Flags == nil {
		s.Flags = def.Flags
	}
}

// SectionRecordFor returns the record matching the directory name.
func (s *Settings) SectionRecordFor(dir string) (SectionRecord, bool) {
	for _, rec := range s.Sections {
		if rec.Directory == dir {
			return rec, true
		}
	}
	return SectionRecord{}, false
}

// settingsPath is the notebook-relative location of the settings document.
func settingsPath() string {
	return path.Join(ConfigDir, SettingsFile)
}

// LoadSettings reads and normalizes the settings document. An absent file
// yields pure defaults; a malformed file is logged and also yields defaults
// so a hand-edited manifest can never brick a load. Permission errors
// surface.
func LoadSettings(store storage.Backend, log *slog.Logger) (Settings, error) {
	file, err := store.ReadFile(settingsPath())
	if err != nil {
		if apperr.IsNotFound(err) {
			return DefaultSettings(), nil
		}
		return Settings{}, fmt.Errorf("notebook: read settings: %w", err)
	}
	var s Settings
	if err := yaml.Unmarshal([]byte(file.Content), &s); err != nil {
		log.Warn("settings: malformed document, using defaults",
			slog.String("path", settingsPath()),
			slog.String("error", err.Error()))
		return DefaultSettings(), nil
	}
	s.Normalize()
	return s, nil
}

// marshalSettings renders settings as the on-disk YAML document.
func marshalSettings(s Settings) (string, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("notebook: marshal settings: %w", err)
	}
	return string(out), nil
}
