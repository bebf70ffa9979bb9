package index

import (
	"log/slog"

	"github.com/starford/othala/internal/notebook"
)

// Sync brings the index in line with the in-memory graph:
//   - new/changed cards (by checksum) are upserted
//   - rows whose card no longer exists are deleted
//
// It runs after the initial load and after every reload; per-card failures
// are logged and skipped so one bad row never blocks the rest.
func Sync(db *DB, g *notebook.Graph, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	live := make(map[string]struct{})
	sections := append([]*notebook.Section{g.Root}, g.Sections...)
	for _, sec := range sections {
		if sec == nil {
			continue
		}
		for _, card := range sec.Cards {
			path := card.FilePath()
			live[path] = struct{}{}
			if checksums[path] == card.Checksum {
				continue
			}
			if err := UpsertGraphCard(db, card); err != nil {
				logger.Warn("index sync: upsert failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
			}
		}
	}

	for path := range checksums {
		if _, ok := live[path]; !ok {
			if err := db.DeleteCard(path); err != nil {
				logger.Warn("index sync: delete failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
			} else {
				logger.Debug("index sync: removed stale", slog.String("path", path))
			}
		}
	}

	return nil
}

// UpsertGraphCard indexes one card from the graph.
func UpsertGraphCard(db *DB, card *notebook.Card) error {
	return db.UpsertCard(CardRow{
		Path:      card.FilePath(),
		CardID:    card.ID,
		Section:   card.Section,
		DocType:   card.Type,
		Title:     card.Title(),
		Checksum:  card.Checksum,
		Tags:      cardTags(card),
		UpdatedAt: card.ModTime,
	}, card.Body)
}

// cardTags extracts the string entries of a card's tags field.
func cardTags(card *notebook.Card) []string {
	raw, ok := card.Fields.Get("tags")
	if !ok {
		return nil
	}
	var out []string
	switch t := raw.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, t...)
	case string:
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
