package notebook

import (
	"sort"
	"time"
)

// Reserved top-level directory names that never become Sections.
const (
	ConfigDir = ".othala"
	AssetsDir = "assets"
)

// reservedDirs lists every top-level directory excluded from section
// discovery: the VCS dir, the dependency dir, the configuration dir, and the
// extracted-assets dir.
var reservedDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	ConfigDir:      {},
	AssetsDir:      {},
}

// hiddenByDefaultSection is the one directory name that defaults to a
// lower-visibility policy when the settings document does not mention it.
const hiddenByDefaultSection = "archive"

// RootSectionName is the pseudo-section holding files that live directly in
// the notebook root.
const RootSectionName = "."

// Section is the in-memory representation of one top-level content
// directory. Its identity is the directory name and survives reloads.
type Section struct {
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	// Pending marks a section declared in settings with no directory on
	// disk yet; the directory is created lazily on first write.
	Pending bool    `json:"pending,omitempty"`
	Cards   []*Card `json:"cards"`
	// Subdirs records every discovered subdirectory path, including empty
	// ones: empty subdirectories are structurally meaningful and must stay
	// visible and deletable.
	Subdirs []string `json:"subdirs"`
}

// Card returns the card with the given id, or nil.
func (s *Section) Card(id string) *Card {
	for _, c := range s.Cards {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// clone returns a copy of the section with its own card and subdir slices.
// Published sections are never edited in place; writers clone, edit the
// clone, and swap a new graph in, so readers holding the old graph keep a
// consistent snapshot.
func (s *Section) clone() *Section {
	dup := *s
	dup.Cards = append([]*Card(nil), s.Cards...)
	dup.Subdirs = append([]string(nil), s.Subdirs...)
	return &dup
}

// hasSubdir reports whether the section already records the subdir path.
func (s *Section) hasSubdir(p string) bool {
	for _, d := range s.Subdirs {
		if d == p {
			return true
		}
	}
	return false
}

// sortCards orders the section's cards according to the sort policy. The
// default policy orders by filesystem modification time, newest first.
func (s *Section) sortCards(policy SortPolicy) {
	less := func(i, j *Card) bool { return i.ModTime.Before(j.ModTime) }
	switch policy.Field {
	case "title":
		less = func(i, j *Card) bool { return i.Title() < j.Title() }
	case "created":
		less = func(i, j *Card) bool {
			ci, cj := i.Created, j.Created
			if ci.IsZero() {
				ci = i.ModTime
			}
			if cj.IsZero() {
				cj = j.ModTime
			}
			return ci.Before(cj)
		}
	}
	sort.SliceStable(s.Cards, func(i, j int) bool {
		if policy.Ascending {
			return less(s.Cards[i], s.Cards[j])
		}
		return less(s.Cards[j], s.Cards[i])
	})
}

// Graph is the whole in-memory document graph. A reload replaces the graph
// wholesale; readers never observe a half-rebuilt one.
type Graph struct {
	Settings Settings   `json:"settings"`
	Sections []*Section `json:"sections"`
	// Root holds files living directly in the notebook root.
	Root *Section `json:"root"`
	// Theme is the raw theme override from the configuration directory,
	// "" when absent.
	Theme    string    `json:"-"`
	LoadedAt time.Time `json:"loaded_at"`
}

// withSection returns a copy of the graph carrying sec in place of the
// section with the same name.
func (g *Graph) withSection(sec *Section) *Graph {
	dup := *g
	if sec.Name == RootSectionName {
		dup.Root = sec
		return &dup
	}
	dup.Sections = make([]*Section, len(g.Sections))
	copy(dup.Sections, g.Sections)
	for i, s := range dup.Sections {
		if s.Name == sec.Name {
			dup.Sections[i] = sec
			break
		}
	}
	return &dup
}

// Section returns the named section, or nil. RootSectionName resolves to the
// root pseudo-section.
func (g *Graph) Section(name string) *Section {
	if name == RootSectionName {
		return g.Root
	}
	for _, s := range g.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Card returns the card with the given id within the named section, or nil.
func (g *Graph) Card(section, id string) *Card {
	s := g.Section(section)
	if s == nil {
		return nil
	}
	return s.Card(id)
}
