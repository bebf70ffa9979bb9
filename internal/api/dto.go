package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/othala/internal/codec"
	"github.com/starford/othala/internal/notebook"
	"github.com/starford/othala/internal/registry"
)

// SaveCardRequest is the request body for creating or updating a card.
type SaveCardRequest struct {
	// Type selects the document type for new cards. Ignored when the card
	// already exists on disk (the original filename wins).
	Type string `json:"type"`
	// Subdir places the card inside a subdirectory of its section. On
	// update, an absent field keeps the current placement and an explicit
	// "" moves the card back to the section root.
	Subdir *string        `json:"subdir"`
	Fields map[string]any `json:"fields"`
	Body   string         `json:"body"`
}

// Validate implements the ozzo-validation contract.
func (r SaveCardRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Length(0, 64)),
		validation.Field(&r.Subdir, validation.Length(0, 255)),
	)
}

// SettingsRequest carries a full settings document for PUT /settings.
type SettingsRequest struct {
	Settings *notebook.Settings `json:"settings"`
}

// Validate implements the ozzo-validation contract.
func (r SettingsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Settings, validation.Required),
	)
}

// SectionSummary is a lightweight section entry in list responses.
type SectionSummary struct {
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Pending bool   `json:"pending"`
	Cards   int    `json:"cards"`
}

// CardSummary is a lightweight card entry in list responses.
type CardSummary struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Title    string    `json:"title"`
	Section  string    `json:"section"`
	Subdir   string    `json:"subdir,omitempty"`
	Filename string    `json:"filename"`
	Modified time.Time `json:"modified"`
}

// CardDetail is the full card response payload.
type CardDetail struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Section  string         `json:"section"`
	Subdir   string         `json:"subdir,omitempty"`
	Filename string         `json:"filename"`
	Path     string         `json:"path"`
	Fields   map[string]any `json:"fields"`
	Body     string         `json:"body"`
	// BodyField names the field the body maps onto for the card's
	// extension, so clients can label it in structured views.
	BodyField string    `json:"body_field,omitempty"`
	Checksum  string    `json:"checksum"`
	Created   time.Time `json:"created"`
	Modified  time.Time `json:"modified"`
}

func cardSummary(c *notebook.Card) CardSummary {
	return CardSummary{
		ID:       c.ID,
		Type:     c.Type,
		Title:    c.Title(),
		Section:  c.Section,
		Subdir:   c.Subdir,
		Filename: c.Source.Filename,
		Modified: c.Modified,
	}
}

func cardDetail(c *notebook.Card, reg *registry.Registry) CardDetail {
	fields := map[string]any{}
	if c.Fields != nil {
		for _, k := range c.Fields.Keys() {
			v, _ := c.Fields.Get(k)
			fields[k] = v
		}
	}
	bodyField := ""
	if cfg, ok := reg.Resolve(c.Source.Filename); ok {
		bodyField = cfg.BodyField
	}
	return CardDetail{
		ID:        c.ID,
		Type:      c.Type,
		Title:     c.Title(),
		Section:   c.Section,
		Subdir:    c.Subdir,
		Filename:  c.Source.Filename,
		Path:      c.FilePath(),
		Fields:    fields,
		Body:      c.Body,
		BodyField: bodyField,
		Checksum:  c.Checksum,
		Created:   c.Created,
		Modified:  c.Modified,
	}
}

func fieldsFromMap(m map[string]any) *codec.Frontmatter {
	fm := codec.NewFrontmatter()
	for _, k := range sortedKeys(m) {
		fm.Set(k, m[k])
	}
	return fm
}
