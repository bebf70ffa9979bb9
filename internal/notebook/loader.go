package notebook

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/codec"
	"github.com/starford/othala/internal/registry"
	"github.com/starford/othala/internal/storage"
)

// maxWalkDepth bounds the recursive tree walk. The real tree bounds the walk
// in practice; the explicit cap also breaks symlink cycles.
const maxWalkDepth = 32

// Loader builds the in-memory graph from a full recursive tree walk. The
// whole graph is rebuilt from scratch on open and on every reload; there is
// no incremental in-memory patching.
type Loader struct {
	store storage.Backend
	reg   *registry.Registry
	log   *slog.Logger

	// ids tracks assigned card ids during one load to keep them unique
	// per tree.
	ids map[string]struct{}
}

// NewLoader creates a loader over the given backend and registry.
func NewLoader(store storage.Backend, reg *registry.Registry, log *slog.Logger) *Loader {
	return &Loader{store: store, reg: reg, log: log}
}

// Load performs one full tree walk and returns a fresh graph. A failure to
// open the root itself aborts the whole load; every per-file failure below
// the root is caught, logged, and skipped so the scan maximizes coverage.
func (l *Loader) Load() (*Graph, error) {
	l.ids = make(map[string]struct{})

	settings, err := LoadSettings(l.store, l.log)
	if err != nil {
		return nil, err
	}

	entries, err := l.store.ListDirectory(".")
	if err != nil {
		return nil, fmt.Errorf("notebook: open root: %w", err)
	}

	g := &Graph{
		Settings: settings,
		Root:     &Section{Name: RootSectionName, Visible: false, Subdirs: []string{}},
		LoadedAt: time.Now(),
	}

	// Discover top-level directories, excluding the reserved set. Settings
	// order wins; unmatched directories follow in listing order with the
	// default visibility policy.
	onDisk := make(map[string]struct{})
	for _, e := range entries {
		if e.Kind != storage.KindDirectory {
			continue
		}
		if _, reserved := reservedDirs[e.Name]; reserved {
			continue
		}
		if strings.HasPrefix(e.Name, ".") {
			continue
		}
		onDisk[e.Name] = struct{}{}
	}

	for _, rec := range settings.Sections {
		sec := &Section{Name: rec.Directory, Visible: rec.Visible, Subdirs: []string{}}
		if _, ok := onDisk[rec.Directory]; ok {
			delete(onDisk, rec.Directory)
			l.walkSection(sec, rec.Directory, "", 0)
		} else {
			// Declared but absent: pending, created lazily on first
			// write.
			sec.Pending = true
		}
		g.Sections = append(g.Sections, sec)
	}

	for _, e := range entries {
		if _, ok := onDisk[e.Name]; !ok {
			continue
		}
		sec := &Section{
			Name:    e.Name,
			Visible: e.Name != hiddenByDefaultSection,
			Subdirs: []string{},
		}
		l.walkSection(sec, e.Name, "", 0)
		g.Sections = append(g.Sections, sec)
	}

	// Root files load through the same per-directory logic, minus
	// recursion: loose files in the root are structural documents and
	// one-offs, not a content tree.
	l.loadDirFiles(g.Root, ".", "", entries)
	g.Root.sortCards(settings.Sort)

	for _, sec := range g.Sections {
		sec.sortCards(settings.Sort)
	}

	// The hidden configuration directory is loaded by dedicated logic,
	// never via section discovery.
	l.loadConfigDir(g)

	return g, nil
}

// walkSection recursively walks one directory level of a section.
// dir is the notebook-relative directory; subdir is the section-relative
// prefix ("" at the section root).
func (l *Loader) walkSection(sec *Section, dir, subdir string, depth int) {
	if depth > maxWalkDepth {
		l.log.Warn("loader: max depth exceeded, skipping",
			slog.String("dir", dir), slog.Int("depth", depth))
		return
	}
	entries, err := l.store.ListDirectory(dir)
	if err != nil {
		l.log.Warn("loader: unreadable directory skipped",
			slog.String("dir", dir), slog.String("error", err.Error()))
		return
	}

	l.loadDirFiles(sec, dir, subdir, entries)

	// Subdirectories are always descended into, even when empty: an empty
	// subdirectory is structurally meaningful and must remain visible and
	// deletable.
	for _, e := range entries {
		if e.Kind != storage.KindDirectory {
			continue
		}
		childSubdir := path.Join(subdir, e.Name)
		if subdir == "" {
			childSubdir = e.Name
		}
		if !sec.hasSubdir(childSubdir) {
			sec.Subdirs = append(sec.Subdirs, childSubdir)
		}
		l.walkSection(sec, path.Join(dir, e.Name), childSubdir, depth+1)
	}
}

// loadDirFiles loads the ordinary files of one directory into sec.
// Companion files are classified first; their content is hoisted into the
// keyed map and attached to primaries, never loaded as cards of their own.
func (l *Loader) loadDirFiles(sec *Section, dir, subdir string, entries []storage.Entry) {
	companions := make(map[string]map[string]string)
	consumed := make(map[string]struct{})

	for _, e := range entries {
		if e.Kind != storage.KindFile {
			continue
		}
		comp, stem, ok := l.reg.CompanionMatch(e.Name)
		if !ok {
			continue
		}
		consumed[e.Name] = struct{}{}
		file, err := l.store.ReadFile(path.Join(dir, e.Name))
		if err != nil {
			l.log.Warn("loader: companion read failed, skipped",
				slog.String("path", path.Join(dir, e.Name)),
				slog.String("error", err.Error()))
			continue
		}
		if companions[stem] == nil {
			companions[stem] = make(map[string]string)
		}
		companions[stem][comp.Field] = file.Content
	}

	for _, e := range entries {
		if e.Kind != storage.KindFile {
			continue
		}
		if _, ok := consumed[e.Name]; ok {
			continue
		}
		if strings.HasPrefix(e.Name, ".") {
			continue
		}
		card := l.loadFile(dir, subdir, e.Name, companions)
		if card == nil {
			continue
		}
		card.Section = sec.Name
		sec.Cards = append(sec.Cards, card)
	}
}

// loadFile parses one ordinary file into a card. An unresolved extension or
// a parse failure yields the opaque fallback instead of dropping the file;
// only a read failure skips it.
func (l *Loader) loadFile(dir, subdir, name string, companions map[string]map[string]string) *Card {
	full := path.Join(dir, name)
	cfg, resolved := l.reg.Resolve(name)
	if !resolved {
		cfg = registry.Fallback(name)
	}

	if cfg.Binary {
		bin, err := l.store.ReadBinary(full)
		if err != nil {
			l.log.Warn("loader: read failed, skipped",
				slog.String("path", full), slog.String("error", err.Error()))
			return nil
		}
		return l.buildBinaryCard(cfg, subdir, name, bin)
	}

	file, err := l.store.ReadFile(full)
	if err != nil {
		l.log.Warn("loader: read failed, skipped",
			slog.String("path", full), slog.String("error", err.Error()))
		return nil
	}
	if !utf8.ValidString(file.Content) {
		// Unknown binary payload under a text extension: placeholder
		// card, same as any other opaque file.
		cfg = registry.Fallback(name)
		cfg.Binary = true
		return l.buildBinaryCard(cfg, subdir, name, storage.BinaryFile{
			Data: []byte(file.Content), ModifiedAt: file.ModifiedAt, Size: file.Size,
		})
	}

	doc, err := codec.Parse(cfg.Parser, file.Content)
	if err != nil {
		l.log.Warn("loader: parse failed, opaque fallback",
			slog.String("path", full), slog.String("error", err.Error()))
		cfg = registry.Fallback(name)
		doc = codec.Document{Frontmatter: codec.NewFrontmatter(), Body: file.Content}
	}

	card := l.buildCard(cfg, subdir, name, doc, file.ModifiedAt)
	card.Checksum = checksum.SumString(file.Content)

	// Attach companion data declared by this card's extension config.
	stem := l.reg.Stem(name)
	if data, ok := companions[stem]; ok {
		for _, comp := range cfg.Companions {
			if content, ok := data[comp.Field]; ok {
				card.Fields.Set(comp.Field, content)
			}
		}
	}
	return card
}

// buildCard assembles a card from a parsed document.
func (l *Loader) buildCard(cfg registry.ExtensionConfig, subdir, name string, doc codec.Document, modTime time.Time) *Card {
	fields := doc.Frontmatter
	if fields == nil {
		fields = codec.NewFrontmatter()
	}

	// An explicit template field overrides the extension's default
	// document type.
	docType := cfg.DocType
	if t := fields.GetString("template"); t != "" {
		docType = t
	} else if t := fields.GetString("type"); t != "" && cfg.Parser == codec.FormatJSON {
		docType = t
	}

	stem := name
	if cfg.Extension != "" && strings.HasSuffix(strings.ToLower(name), cfg.Extension) {
		stem = name[:len(name)-len(cfg.Extension)]
	}

	id := fields.GetString("id")
	if id == "" {
		id = synthesizeID(stem, modTime)
	}
	id = l.uniqueID(id)

	return &Card{
		ID:       id,
		Type:     docType,
		Fields:   fields,
		Body:     doc.Body,
		Subdir:   subdir,
		Source:   Source{Filename: name, Format: cfg.Parser, Extension: cfg.Extension},
		Created:  parseDeclaredTime(fields.GetString("created")),
		Modified: parseDeclaredTime(fields.GetString("modified")),
		ModTime:  modTime,
	}
}

// buildBinaryCard builds the placeholder card for an opaque binary payload.
func (l *Loader) buildBinaryCard(cfg registry.ExtensionConfig, subdir, name string, bin storage.BinaryFile) *Card {
	fields := codec.NewFrontmatter()
	fields.Set("size", bin.Size)
	card := &Card{
		ID:       l.uniqueID(synthesizeID(name, bin.ModifiedAt)),
		Type:     cfg.DocType,
		Fields:   fields,
		Body:     fmt.Sprintf("(binary file, %d bytes)", bin.Size),
		Subdir:   subdir,
		Source:   Source{Filename: name, Format: cfg.Parser, Extension: cfg.Extension},
		ModTime:  bin.ModifiedAt,
		Checksum: checksum.Sum(bin.Data),
	}
	return card
}

// uniqueID reserves id for this load, suffixing a counter on collision.
func (l *Loader) uniqueID(id string) string {
	if _, taken := l.ids[id]; !taken {
		l.ids[id] = struct{}{}
		return id
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", id, i)
		if _, taken := l.ids[candidate]; !taken {
			l.ids[candidate] = struct{}{}
			return candidate
		}
	}
}

// loadConfigDir reads the structural documents of the hidden configuration
// directory. These are config, not user content, so they never go through
// section discovery.
func (l *Loader) loadConfigDir(g *Graph) {
	theme, err := l.store.ReadFile(path.Join(ConfigDir, ThemeFile))
	switch {
	case err == nil:
		g.Theme = theme.Content
	case apperr.IsNotFound(err):
		// Optional file; absence is normal control flow.
	default:
		l.log.Warn("loader: theme read failed",
			slog.String("error", err.Error()))
	}
}
