package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/notebook"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	nb *notebook.Notebook
	db *index.DB
}

// NewHandler creates a new Handler. db may be nil when the search index
// is disabled; index-backed endpoints then return 503.
func NewHandler(nb *notebook.Notebook, db *index.DB) *Handler {
	return &Handler{nb: nb, db: db}
}

// sectionName extracts the section name from the URL. Supports encoded
// names such as %2E for the root section.
func sectionName(r *http.Request) string {
	raw := chi.URLParam(r, "section")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListSections handles GET /api/sections.
func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	sections := h.nb.Sections()
	out := make([]SectionSummary, 0, len(sections))
	for _, s := range sections {
		out = append(out, SectionSummary{
			Name:    s.Name,
			Visible: s.Visible,
			Pending: s.Pending,
			Cards:   len(s.Cards),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": out})
}

// ListSectionCards handles GET /api/sections/{section}/cards.
func (h *Handler) ListSectionCards(w http.ResponseWriter, r *http.Request) {
	name := sectionName(r)
	section := h.nb.Section(name)
	if section == nil {
		writeJSON(w, http.StatusNotFound, errorBody("section not found"))
		return
	}
	out := make([]CardSummary, 0, len(section.Cards))
	for _, c := range section.Cards {
		out = append(out, cardSummary(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"section": section.Name,
		"cards":   out,
	})
}

// GetCard handles GET /api/sections/{section}/cards/{id}.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	card := h.nb.Card(sectionName(r), chi.URLParam(r, "id"))
	if card == nil {
		writeJSON(w, http.StatusNotFound, errorBody("card not found"))
		return
	}
	writeJSON(w, http.StatusOK, cardDetail(card, h.nb.Registry()))
}

// CreateCard handles POST /api/sections/{section}/cards.
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	name := sectionName(r)

	var req SaveCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	card := &notebook.Card{
		Type:   req.Type,
		Fields: fieldsFromMap(req.Fields),
		Body:   req.Body,
	}
	if req.Subdir != nil {
		card.Subdir = *req.Subdir
	}
	// A declared id is the card's identity from the start, so a duplicate
	// is rejected instead of silently rewriting the existing document.
	if id := card.Fields.GetString("id"); id != "" {
		card.ID = id
	}
	if err := h.nb.SaveCard(name, card); err != nil {
		h.writeSaveError(w, name, err)
		return
	}
	h.syncIndex(card)
	writeJSON(w, http.StatusCreated, cardDetail(card, h.nb.Registry()))
}

// UpdateCard handles PUT /api/sections/{section}/cards/{id}.
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	name := sectionName(r)
	id := chi.URLParam(r, "id")

	existing := h.nb.Card(name, id)
	if existing == nil {
		writeJSON(w, http.StatusNotFound, errorBody("card not found"))
		return
	}

	var req SaveCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	// Work on a copy so a failed save leaves the loaded card untouched.
	card := *existing
	card.Fields = fieldsFromMap(req.Fields)
	card.Body = req.Body
	if req.Subdir != nil {
		card.Subdir = *req.Subdir
	}

	if err := h.nb.SaveCard(name, &card); err != nil {
		h.writeSaveError(w, name, err)
		return
	}
	h.syncIndex(&card)
	writeJSON(w, http.StatusOK, cardDetail(&card, h.nb.Registry()))
}

// DeleteCard handles DELETE /api/sections/{section}/cards/{id}.
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	name := sectionName(r)
	id := chi.URLParam(r, "id")

	card := h.nb.Card(name, id)
	if card == nil {
		writeJSON(w, http.StatusNotFound, errorBody("card not found"))
		return
	}
	path := card.FilePath()

	if err := h.nb.DeleteCard(name, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("card not found"))
			return
		}
		slog.Error("delete card failed", slog.String("section", name), slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if h.db != nil {
		if err := h.db.DeleteCard(path); err != nil {
			slog.Warn("index delete failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reload handles POST /api/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.nb.Reload(true); err != nil {
		slog.Error("reload failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("reload failed"))
		return
	}
	if h.db != nil {
		if err := index.Sync(h.db, h.nb.Graph(), slog.Default()); err != nil {
			slog.Warn("index sync failed", slog.String("error", err.Error()))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "reloaded"})
}

// GetExtensions handles GET /api/extensions.
func (h *Handler) GetExtensions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"extensions": h.nb.Extensions()})
}

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.nb.Settings())
}

// UpdateSettings handles PUT /api/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.nb.SaveSettings(*req.Settings); err != nil {
		slog.Error("save settings failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, h.nb.Settings())
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("search index disabled"))
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.db.Search(q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// ListCards handles GET /api/cards (index-backed, paginated).
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("search index disabled"))
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	rows, total, err := h.db.ListCards(q.Get("section"), q.Get("type"), limit, offset)
	if err != nil {
		slog.Error("list cards failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if rows == nil {
		rows = []index.CardRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cards": rows,
		"total": total,
	})
}

func (h *Handler) writeSaveError(w http.ResponseWriter, section string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("section not found"))
	case errors.Is(err, apperr.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, errorBody("permission denied"))
	case errors.Is(err, apperr.ErrAlreadyExists), errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("card already exists"))
	default:
		slog.Error("save card failed", slog.String("section", section), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func (h *Handler) syncIndex(card *notebook.Card) {
	if h.db == nil {
		return
	}
	if err := index.UpsertGraphCard(h.db, card); err != nil {
		slog.Warn("index upsert failed", slog.String("path", card.FilePath()), slog.String("error", err.Error()))
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
