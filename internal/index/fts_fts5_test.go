//go:build sqlite_fts5

package index

import (
	"testing"
	"time"
)

func TestFTS5_TableExists(t *testing.T) {
	db := openTestDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM cards_fts`).Scan(&count); err != nil {
		t.Fatalf("cards_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := openTestDB(t)
	r := row("papers/fts.md", "fts", "papers", "note", "FTS Card", "f1", "search")
	if err := db.UpsertCard(r, "Othala provides powerful full-text search capabilities."); err != nil {
		t.Fatalf("UpsertCard: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "papers/fts.md" || results[0].CardID != "fts" {
		t.Errorf("result = %+v", results[0])
	}
	// FTS5 snippet should contain bold markers.
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := openTestDB(t)
	_ = db.UpsertCard(row("n/gone.md", "gone", "n", "note", "Gone", "g"), "vanishing content")
	_ = db.DeleteCard("n/gone.md")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Path == "n/gone.md" {
			t.Error("deleted card still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	old := CardRow{Path: "n/evo.md", CardID: "evo", Section: "n", Title: "Old", Checksum: "1", UpdatedAt: now}
	_ = db.UpsertCard(old, "original text")
	old.Title = "New"
	old.Checksum = "2"
	_ = db.UpsertCard(old, "replacement text")

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
