package index

import (
	"encoding/json"
	"fmt"
	"time"
)

// CardRow represents a row in the cards table, keyed by the card's primary
// file path.
type CardRow struct {
	Path      string
	CardID    string
	Section   string
	DocType   string
	Title     string
	Checksum  string
	Tags      []string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	CardID  string `json:"card_id"`
	Section string `json:"section"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// UpsertCard inserts or replaces a card row and its FTS entry within a
// transaction.
func (db *DB) UpsertCard(c CardRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(c.Tags)

	_, err = tx.Exec(`
		INSERT INTO cards (path, card_id, section, doc_type, title, checksum, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			card_id    = excluded.card_id,
			section    = excluded.section,
			doc_type   = excluded.doc_type,
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, c.Path, c.CardID, c.Section, c.DocType, c.Title, c.Checksum, string(tagsJSON), body, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert card: %w", err)
	}

	if err := ftsUpsert(tx, c.Path, c.Title, body, c.Tags); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteCard removes a card row and its FTS entry.
func (db *DB) DeleteCard(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM cards WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a path, or empty string when
// not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM cards WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed card.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM cards`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ListCards returns card rows filtered by section and document type (empty
// string matches all), newest first, with the total count before paging.
func (db *DB) ListCards(section, docType string, limit, offset int) ([]CardRow, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	where := ` WHERE (? = '' OR section = ?) AND (? = '' OR doc_type = ?)`
	args := []any{section, section, docType, docType}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM cards`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count cards: %w", err)
	}

	query := `SELECT path, card_id, section, doc_type, title, checksum, tags, updated_at FROM cards` +
		where + ` ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list cards: %w", err)
	}
	defer rows.Close()

	var out []CardRow
	for rows.Next() {
		var r CardRow
		var tagsJSON string
		if err := rows.Scan(&r.Path, &r.CardID, &r.Section, &r.DocType, &r.Title, &r.Checksum, &tagsJSON, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &r.Tags)
		out = append(out, r)
	}
	return out, total, rows.Err()
}
