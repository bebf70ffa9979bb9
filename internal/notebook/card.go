// Package notebook implements the filesystem synchronization engine: it maps
// the in-memory document graph (sections and cards) onto a real directory
// tree, persists incremental changes, and reconciles external edits observed
// through directory-change notifications.
package notebook

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/starford/othala/internal/codec"
)

// Source describes where a card came from on disk. It is used to preserve
// the filename and extension across saves: a title change never renames the
// file, and a card loaded from disk is never silently re-extensioned.
type Source struct {
	Filename  string `json:"filename"`
	Format    string `json:"format"`
	Extension string `json:"extension"`
}

// Card is the in-memory parsed representation of one document file.
type Card struct {
	// ID is the stable string identity, unique per tree. A numeric id in a
	// source document is kept as its string rendering and never re-typed.
	ID   string `json:"id"`
	Type string `json:"type"`

	// Fields holds the document's frontmatter, including any companion
	// content hoisted into named fields.
	Fields *codec.Frontmatter `json:"fields"`
	// Body is the document body for formats that separate body from
	// metadata; its field name in serialized form comes from the
	// extension config.
	Body string `json:"body"`

	Section string `json:"section"`
	// Subdir is the section-relative subdirectory path, "" for the
	// section root. Subdirectory membership derives purely from this
	// path string.
	Subdir string `json:"subdir,omitempty"`
	Source Source `json:"source"`

	// Created and Modified are the timestamps declared in the document.
	Created  time.Time `json:"created,omitempty"`
	Modified time.Time `json:"modified,omitempty"`
	// ModTime is the filesystem modification time, tracked separately and
	// used for default ordering.
	ModTime time.Time `json:"mod_time"`

	Checksum string `json:"checksum"`
}

// Title returns the card's display title field, or its id when untitled.
func (c *Card) Title() string {
	if t := c.Fields.GetString("title"); t != "" {
		return t
	}
	return c.ID
}

// Dir returns the notebook-relative directory holding the card's file.
func (c *Card) Dir() string {
	if c.Subdir == "" {
		return c.Section
	}
	return path.Join(c.Section, c.Subdir)
}

// FilePath returns the notebook-relative path of the card's primary file.
func (c *Card) FilePath() string {
	return path.Join(c.Dir(), c.Source.Filename)
}

// slugify reduces a title to a filesystem-friendly base filename.
func slugify(s string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(sb.String(), "-")
	if out == "" {
		return "card"
	}
	return out
}

// synthesizeID builds a deterministic card id from the source filename stem
// and a timestamp. It is identity, not a foreign key; uniqueness per tree is
// enforced by the loader.
func synthesizeID(stem string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", slugify(stem), ts.Unix())
}

// parseDeclaredTime parses a created/modified frontmatter value.
func parseDeclaredTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
