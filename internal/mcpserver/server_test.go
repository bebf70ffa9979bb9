package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/notebook"
	"github.com/starford/othala/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()

	dir, store := testutil.TestNotebookDir(t)
	seed := map[string]string{
		"papers/bert.md":         "---\nid: bert\ntitle: BERT\n---\nPre-training notes.\n",
		"links/go.bookmark.json": `{"id": "go-site", "type": "bookmark", "title": "Go", "url": "https://go.dev"}`,
	}
	for rel, content := range seed {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	nb, err := notebook.Open(store, testutil.DiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	db := testutil.TestDB(t)
	if err := index.Sync(db, nb.Graph(), testutil.DiscardLogger()); err != nil {
		t.Fatal(err)
	}

	return New(nb, db, store), dir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper; dispatch to the
	// handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_sections":
		result, err = srv.listSections(ctx, req)
	case "list_cards":
		result, err = srv.listCards(ctx, req)
	case "read_card":
		result, err = srv.readCard(ctx, req)
	case "save_card":
		result, err = srv.saveCard(ctx, req)
	case "delete_card":
		result, err = srv.deleteCard(ctx, req)
	case "search_cards":
		result, err = srv.searchCards(ctx, req)
	case "reload_notebook":
		result, err = srv.reloadNotebook(ctx, req)
	case "get_card_contract":
		result, err = srv.getCardContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListSections(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_sections", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "papers") || !strings.Contains(text, "links") {
		t.Errorf("list_sections = %q", text)
	}
}

func TestListCards(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_cards", map[string]interface{}{"section": "papers"})
	text := resultText(r)
	if !strings.Contains(text, "bert") {
		t.Errorf("list_cards = %q", text)
	}

	r = callTool(t, srv, "list_cards", map[string]interface{}{"section": "ghost"})
	if !r.IsError {
		t.Error("expected error for unknown section")
	}
}

func TestReadCard(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "read_card", map[string]interface{}{"section": "papers", "id": "bert"})
	var payload map[string]any
	if err := json.Unmarshal([]byte(resultText(r)), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["title"] != "BERT" || payload["filename"] != "bert.md" {
		t.Errorf("payload = %v", payload)
	}

	r = callTool(t, srv, "read_card", map[string]interface{}{"section": "papers", "id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing card")
	}
}

func TestSaveAndReadCard(t *testing.T) {
	srv, dir := testServer(t)

	r := callTool(t, srv, "save_card", map[string]interface{}{
		"section": "papers",
		"type":    "note",
		"fields":  `{"title": "From MCP"}`,
		"body":    "written through the tool\n",
	})
	text := resultText(r)
	if r.IsError || !strings.HasPrefix(text, "saved: papers/") {
		t.Fatalf("save_card = %q", text)
	}
	if _, err := os.Stat(filepath.Join(dir, "papers", "from-mcp.md")); err != nil {
		t.Error("saved file not on disk")
	}

	// Update round: existing id, new body.
	r = callTool(t, srv, "save_card", map[string]interface{}{
		"section": "papers",
		"id":      "bert",
		"fields":  `{"id": "bert", "title": "BERT"}`,
		"body":    "revised\n",
	})
	if r.IsError {
		t.Fatalf("update = %q", resultText(r))
	}
	r = callTool(t, srv, "read_card", map[string]interface{}{"section": "papers", "id": "bert"})
	if !strings.Contains(resultText(r), "revised") {
		t.Errorf("read after update = %q", resultText(r))
	}
}

func TestSaveCardErrors(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "save_card", map[string]interface{}{
		"section": "papers",
		"id":      "ghost",
		"body":    "x",
	})
	if !r.IsError {
		t.Error("expected error for unknown id")
	}

	r = callTool(t, srv, "save_card", map[string]interface{}{
		"section": "papers",
		"type":    "note",
		"fields":  "{not json",
	})
	if !r.IsError {
		t.Error("expected error for invalid fields JSON")
	}
}

func TestDeleteCard(t *testing.T) {
	srv, dir := testServer(t)

	r := callTool(t, srv, "delete_card", map[string]interface{}{"section": "papers", "id": "bert"})
	if r.IsError {
		t.Fatalf("delete = %q", resultText(r))
	}
	if _, err := os.Stat(filepath.Join(dir, "papers", "bert.md")); !os.IsNotExist(err) {
		t.Error("file still on disk")
	}

	r = callTool(t, srv, "delete_card", map[string]interface{}{"section": "papers", "id": "bert"})
	if !r.IsError {
		t.Error("expected error for double delete")
	}
}

func TestSearchCards(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "search_cards", map[string]interface{}{"query": "Pre-training"})
	if r.IsError {
		t.Fatalf("search = %q", resultText(r))
	}
	if !strings.Contains(resultText(r), "bert") {
		t.Errorf("search = %q", resultText(r))
	}
}

func TestReloadNotebook(t *testing.T) {
	srv, dir := testServer(t)

	extra := filepath.Join(dir, "papers", "new.md")
	if err := os.WriteFile(extra, []byte("---\nid: new\n---\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "reload_notebook", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("reload = %q", resultText(r))
	}
	r = callTool(t, srv, "read_card", map[string]interface{}{"section": "papers", "id": "new"})
	if r.IsError {
		t.Error("external file not visible after reload")
	}
}

func TestGetCardContract(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_card_contract", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "bookmark") || !strings.Contains(text, "frontmatter") {
		t.Errorf("contract looks wrong: %.80s", text)
	}
}
