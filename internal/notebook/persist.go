package notebook

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/codec"
	"github.com/starford/othala/internal/registry"
)

// SaveCard persists one card incrementally — no other file is touched. The
// write order within one save is fixed: directories, then the primary file,
// then companions, then ledger bookkeeping already interleaved per path. The
// in-memory graph reflects the save only after the primary write succeeds.
//
// A card loaded from disk keeps its original filename and extension; a new
// card gets a type-inferred default extension and a slug filename.
func (n *Notebook) SaveCard(sectionName string, card *Card) error {
	if card == nil || card.Fields == nil {
		return fmt.Errorf("notebook: save: nil card")
	}

	n.mu.RLock()
	g := n.graph
	reg := n.reg
	n.mu.RUnlock()

	sec := g.Section(sectionName)
	if sec == nil {
		return fmt.Errorf("notebook: save: unknown section %q: %w", sectionName, apperr.ErrNotFound)
	}

	cfg, filename, err := n.resolveSaveConfig(reg, card)
	if err != nil {
		return err
	}
	// Binary payloads are placeholders in the graph; writing one back
	// through the text codec would destroy the file.
	if cfg.Binary || codec.IsBinary(cfg.Parser) {
		return fmt.Errorf("notebook: save: %s is a binary file and cannot be rewritten", filename)
	}

	// A brand-new card must not take over a document it does not own.
	if card.Source.Filename == "" {
		if card.ID != "" && sec.Card(card.ID) != nil {
			return fmt.Errorf("notebook: save: card %q already in %q: %w", card.ID, sectionName, apperr.ErrAlreadyExists)
		}
		for _, c := range sec.Cards {
			if c.Subdir == card.Subdir && c.Source.Filename == filename {
				return fmt.Errorf("notebook: save: %s already exists: %w", filename, apperr.ErrConflict)
			}
		}
	}

	id := card.ID
	if id == "" {
		id = synthesizeID(reg.Stem(filename), time.Now())
	}

	fields, companionValues := n.prepareFields(card, cfg, id)

	// Embedded binary blobs leave the document before serialization so
	// primary documents stay text-only.
	extracted, err := n.extractAssets(id, fields)
	if err != nil {
		return err
	}

	body := ""
	if cfg.Parser != codec.FormatJSON && cfg.Parser != codec.FormatYAML {
		body = card.Body
	}
	content, err := codec.Serialize(cfg.Parser, codec.Document{Frontmatter: fields, Body: body})
	if err != nil {
		return fmt.Errorf("notebook: serialize %s: %w", card.ID, err)
	}

	dir := sectionName
	if card.Subdir != "" {
		dir = path.Join(sectionName, card.Subdir)
	}
	if exists, _ := n.store.Exists(dir); !exists {
		if err := n.store.Mkdir(dir); err != nil {
			return fmt.Errorf("notebook: save: %w", err)
		}
		n.ledger.Record(dir)
	}

	primary := path.Join(dir, filename)
	if err := n.store.WriteFile(primary, content); err != nil {
		return fmt.Errorf("notebook: write %s: %w", primary, err)
	}
	n.ledger.Record(primary)

	stem := reg.Stem(filename)
	for _, comp := range cfg.Companions {
		value, ok := companionValues[comp.Field]
		if !ok {
			continue
		}
		companion := path.Join(dir, stem+comp.Suffix)
		if err := n.store.WriteFile(companion, value); err != nil {
			// The primary is already durable; a missing companion
			// is tolerated as an absent optional field.
			n.log.Warn("save: companion write failed",
				slog.String("path", companion),
				slog.String("error", err.Error()))
			continue
		}
		n.ledger.Record(companion)
	}

	// Disk is consistent; now memory, in the same logical step.
	card.ID = id
	card.Section = sectionName
	card.Source = Source{Filename: filename, Format: cfg.Parser, Extension: cfg.Extension}
	card.ModTime = time.Now()
	card.Checksum = checksum.SumString(content)
	for key, ref := range extracted {
		card.Fields.Set(key, ref)
	}

	var prior *Card
	n.mu.Lock()
	if cur := n.graph.Section(sectionName); cur != nil {
		next := cur.clone()
		next.Pending = false
		if card.Subdir != "" && !next.hasSubdir(card.Subdir) {
			next.Subdirs = append(next.Subdirs, card.Subdir)
		}
		replaced := false
		for i, existing := range next.Cards {
			if existing.ID == card.ID {
				prior = existing
				next.Cards[i] = card
				replaced = true
				break
			}
		}
		if !replaced {
			next.Cards = append(next.Cards, card)
		}
		n.graph = n.graph.withSection(next)
	}
	n.mu.Unlock()

	// A save that changed the card's directory leaves the old primary file
	// behind; remove it and its companions.
	if prior != nil && prior != card && prior.FilePath() != primary {
		stale := prior.FilePath()
		if err := n.store.DeleteEntry(stale, false); err != nil && !apperr.IsNotFound(err) {
			n.log.Warn("save: stale primary removal failed",
				slog.String("path", stale), slog.String("error", err.Error()))
		} else {
			n.ledger.Record(stale)
		}
		n.removeCompanions(reg, prior)
	}

	n.emit(EventCardSaved, primary)
	return nil
}

// resolveSaveConfig picks the extension config and filename for a save: the
// original filename and format when the card came from disk (a card is never
// silently re-extensioned), a type-inferred default extension with a slug
// filename otherwise. The card itself is not touched.
func (n *Notebook) resolveSaveConfig(reg *registry.Registry, card *Card) (registry.ExtensionConfig, string, error) {
	if card.Source.Filename != "" {
		if cfg, ok := reg.Resolve(card.Source.Filename); ok {
			return cfg, card.Source.Filename, nil
		}
		// Loaded as an opaque fallback; keep writing it that way.
		cfg := registry.Fallback(card.Source.Filename)
		cfg.Parser = card.Source.Format
		return cfg, card.Source.Filename, nil
	}

	cfg, ok := reg.DefaultExtensionFor(card.Type)
	if !ok {
		return registry.ExtensionConfig{}, "", fmt.Errorf("notebook: no extension registered for document type %q", card.Type)
	}
	return cfg, slugify(card.Title()) + cfg.Extension, nil
}

// prepareFields builds the serializable field set: companion fields are
// pulled out for their own files, the id is made durable, and structured
// documents carry their document type explicitly.
func (n *Notebook) prepareFields(card *Card, cfg registry.ExtensionConfig, id string) (*codec.Frontmatter, map[string]string) {
	fields := card.Fields.Clone()

	companionValues := make(map[string]string)
	for _, comp := range cfg.Companions {
		if v, ok := fields.Get(comp.Field); ok {
			if s, ok := v.(string); ok {
				companionValues[comp.Field] = s
			}
			fields.Delete(comp.Field)
		}
	}

	// The extension's body field names the document body in structured
	// views; a client echoing it back as a frontmatter field would store
	// the body twice.
	if cfg.BodyField != "" {
		fields.Delete(cfg.BodyField)
	}

	if fields.GetString("id") == "" {
		fields.Set("id", id)
	}

	switch cfg.Parser {
	case codec.FormatJSON, codec.FormatYAML:
		if fields.GetString("type") == "" {
			fields.Set("type", card.Type)
		}
	default:
		if card.Type != cfg.DocType && fields.GetString("template") == "" {
			fields.Set("template", card.Type)
		}
	}
	return fields, companionValues
}

// extractAssets writes any embedded data-URI blob field to the assets
// directory as a binary file and replaces the field value with the
// notebook-relative reference. It returns the replacements it made so the
// caller can apply them to the live card once the save is durable.
func (n *Notebook) extractAssets(cardID string, fields *codec.Frontmatter) (map[string]string, error) {
	extracted := make(map[string]string)
	for _, key := range fields.Keys() {
		v, _ := fields.Get(key)
		s, ok := v.(string)
		if !ok || !strings.HasPrefix(s, "data:") {
			continue
		}
		mime, payload, found := strings.Cut(strings.TrimPrefix(s, "data:"), ";base64,")
		if !found {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			n.log.Warn("save: undecodable embedded blob left inline",
				slog.String("field", key), slog.String("error", err.Error()))
			continue
		}
		assetPath := path.Join(AssetsDir, fmt.Sprintf("%s-%s%s", slugify(cardID), slugify(key), extForMIME(mime)))
		if err := n.store.WriteBinary(assetPath, data); err != nil {
			return nil, fmt.Errorf("notebook: extract asset %s: %w", assetPath, err)
		}
		n.ledger.Record(assetPath)
		fields.Set(key, assetPath)
		extracted[key] = assetPath
	}
	return extracted, nil
}

func extForMIME(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".bin"
	}
}

// DeleteCard removes a card's primary file and companions from disk and
// drops it from the graph.
func (n *Notebook) DeleteCard(sectionName, id string) error {
	n.mu.RLock()
	g := n.graph
	reg := n.reg
	n.mu.RUnlock()

	sec := g.Section(sectionName)
	if sec == nil {
		return fmt.Errorf("notebook: delete: unknown section %q: %w", sectionName, apperr.ErrNotFound)
	}
	card := sec.Card(id)
	if card == nil {
		return fmt.Errorf("notebook: delete: no card %q in %q: %w", id, sectionName, apperr.ErrNotFound)
	}

	primary := card.FilePath()
	if err := n.store.DeleteEntry(primary, false); err != nil && !apperr.IsNotFound(err) {
		return fmt.Errorf("notebook: delete %s: %w", primary, err)
	}
	n.ledger.Record(primary)

	n.removeCompanions(reg, card)

	n.mu.Lock()
	if cur := n.graph.Section(sectionName); cur != nil {
		next := cur.clone()
		next.Cards = slices.DeleteFunc(next.Cards, func(c *Card) bool { return c.ID == id })
		n.graph = n.graph.withSection(next)
	}
	n.mu.Unlock()

	n.emit(EventCardDeleted, primary)
	return nil
}

// removeCompanions deletes every companion file declared for the card's
// extension, recording each removed path in the ledger.
func (n *Notebook) removeCompanions(reg *registry.Registry, card *Card) {
	cfg, ok := reg.Resolve(card.Source.Filename)
	if !ok {
		return
	}
	stem := reg.Stem(card.Source.Filename)
	for _, comp := range cfg.Companions {
		companion := path.Join(card.Dir(), stem+comp.Suffix)
		if exists, _ := n.store.Exists(companion); !exists {
			continue
		}
		if err := n.store.DeleteEntry(companion, false); err != nil {
			n.log.Warn("delete: companion removal failed",
				slog.String("path", companion),
				slog.String("error", err.Error()))
			continue
		}
		n.ledger.Record(companion)
	}
}

// SaveSettings normalizes and persists the settings document, applies the
// new section order and visibility to the graph, and creates directories for
// newly declared sections. When the enabled document-type set changed, the
// extension registry is rebuilt from the override file.
func (n *Notebook) SaveSettings(s Settings) error {
	s.Normalize()

	content, err := marshalSettings(s)
	if err != nil {
		return err
	}
	if err := n.store.WriteFile(settingsPath(), content); err != nil {
		return fmt.Errorf("notebook: write settings: %w", err)
	}
	n.ledger.Record(settingsPath())

	for _, rec := range s.Sections {
		if exists, _ := n.store.Exists(rec.Directory); !exists {
			if err := n.store.Mkdir(rec.Directory); err != nil {
				n.log.Warn("settings: section dir create failed",
					slog.String("dir", rec.Directory),
					slog.String("error", err.Error()))
				continue
			}
			n.ledger.Record(rec.Directory)
		}
	}

	n.mu.Lock()
	g := n.graph
	prevTypes := g.Settings.DocTypes
	next := *g
	next.Settings = s
	// Reorder the sections to match the new records; sections not
	// mentioned keep their relative order after the declared ones. Touched
	// sections are cloned so readers of the previous graph stay
	// consistent.
	ordered := make([]*Section, 0, len(g.Sections))
	taken := make(map[string]bool)
	for _, rec := range s.Sections {
		if cur := g.Section(rec.Directory); cur != nil {
			sec := cur.clone()
			sec.Visible = rec.Visible
			sec.Pending = false
			ordered = append(ordered, sec)
			taken[sec.Name] = true
		} else {
			ordered = append(ordered, &Section{
				Name: rec.Directory, Visible: rec.Visible, Subdirs: []string{},
			})
			taken[rec.Directory] = true
		}
	}
	for _, sec := range g.Sections {
		if !taken[sec.Name] {
			ordered = append(ordered, sec)
		}
	}
	next.Sections = ordered
	n.graph = &next
	typesChanged := !slices.Equal(prevTypes, s.DocTypes)
	if typesChanged {
		n.reg = buildRegistry(n.store, n.log)
	}
	n.mu.Unlock()

	if typesChanged {
		n.log.Info("settings: document-type set changed, registry rebuilt")
	}
	return nil
}
