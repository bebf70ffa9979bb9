// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/codec"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/notebook"
	"github.com/starford/othala/internal/storage"
)

// Server wraps the MCP server with Othala tools.
type Server struct {
	mcp   *server.MCPServer
	nb    *notebook.Notebook
	db    *index.DB
	store storage.Backend
}

// New creates a new MCP server with all Othala tools registered.
func New(nb *notebook.Notebook, db *index.DB, store storage.Backend) *Server {
	s := &Server{nb: nb, db: db, store: store}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_sections",
		mcp.WithDescription("List notebook sections with card counts and visibility."),
	), s.listSections)

	s.mcp.AddTool(mcp.NewTool("list_cards",
		mcp.WithDescription("List cards in a section."),
		mcp.WithString("section", mcp.Required(), mcp.Description("Section name ('.' for the notebook root)")),
	), s.listCards)

	s.mcp.AddTool(mcp.NewTool("read_card",
		mcp.WithDescription("Read a card's fields and body."),
		mcp.WithString("section", mcp.Required(), mcp.Description("Section name ('.' for the notebook root)")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Card identifier")),
	), s.readCard)

	s.mcp.AddTool(mcp.NewTool("save_card",
		mcp.WithDescription("Create or update a card. Fields MUST follow the card format "+
			"contract for the chosen document type. Read the contract first via the "+
			"get_card_contract tool or the othala://card-format resource."),
		mcp.WithString("section", mcp.Required(), mcp.Description("Target section ('.' for the notebook root)")),
		mcp.WithString("id", mcp.Description("Card identifier; omit to create a new card")),
		mcp.WithString("type", mcp.Description("Document type for new cards (note, bookmark, quiz, code, ...)")),
		mcp.WithString("fields", mcp.Description("JSON object of metadata fields")),
		mcp.WithString("body", mcp.Description("Card body text")),
	), s.saveCard)

	s.mcp.AddTool(mcp.NewTool("delete_card",
		mcp.WithDescription("Delete a card and its companion files."),
		mcp.WithString("section", mcp.Required(), mcp.Description("Section name ('.' for the notebook root)")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Card identifier")),
	), s.deleteCard)

	s.mcp.AddTool(mcp.NewTool("search_cards",
		mcp.WithDescription("Full-text search through card titles and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchCards)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Download or decode a file and store it in the shared assets "+
			"directory. Accepts http(s) URLs and base64 data URIs. Returns the saved path "+
			"and a ready-to-paste Markdown image reference."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,... URI")),
		mcp.WithString("filename", mcp.Description("Optional target filename (extension must match content)")),
	), s.uploadAsset)

	s.mcp.AddTool(mcp.NewTool("reload_notebook",
		mcp.WithDescription("Re-read the notebook from disk, picking up external edits."),
	), s.reloadNotebook)

	s.mcp.AddTool(mcp.NewTool("get_card_contract",
		mcp.WithDescription("Returns the canonical Othala card format contract. "+
			"Call this before creating or updating cards to ensure correct structure."),
	), s.getCardContract)

	// Resource: card format contract.
	s.mcp.AddResource(
		mcp.NewResource("othala://card-format", "Card Format Contract",
			mcp.WithResourceDescription("Canonical card format that all documents must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCardFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listSections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type row struct {
		Name    string `json:"name"`
		Visible bool   `json:"visible"`
		Pending bool   `json:"pending"`
		Cards   int    `json:"cards"`
	}
	var rows []row
	for _, sect := range s.nb.Sections() {
		rows = append(rows, row{Name: sect.Name, Visible: sect.Visible, Pending: sect.Pending, Cards: len(sect.Cards)})
	}
	out, _ := json.MarshalIndent(rows, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("section")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sect := s.nb.Section(name)
	if sect == nil {
		return mcp.NewToolResultError(fmt.Sprintf("section not found: %s", name)), nil
	}
	var lines []string
	for _, c := range sect.Cards {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", c.ID, c.Type, c.Title()))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("section is empty"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	section, err := req.RequireString("section")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	card := s.nb.Card(section, id)
	if card == nil {
		return mcp.NewToolResultError(fmt.Sprintf("card not found: %s/%s", section, id)), nil
	}

	payload := map[string]any{
		"id":       card.ID,
		"type":     card.Type,
		"title":    card.Title(),
		"section":  card.Section,
		"filename": card.Source.Filename,
		"fields":   card.Fields,
		"body":     card.Body,
	}
	out, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) saveCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	section, err := req.RequireString("section")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	card := &notebook.Card{}
	if id, idErr := req.RequireString("id"); idErr == nil && id != "" {
		if existing := s.nb.Card(section, id); existing != nil {
			copied := *existing
			card = &copied
		} else {
			return mcp.NewToolResultError(fmt.Sprintf("card not found: %s/%s", section, id)), nil
		}
	}
	if typ, typErr := req.RequireString("type"); typErr == nil && typ != "" {
		card.Type = typ
	}
	if raw, fErr := req.RequireString("fields"); fErr == nil && raw != "" {
		fields := codec.NewFrontmatter()
		if jsonErr := json.Unmarshal([]byte(raw), fields); jsonErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid fields JSON: %v", jsonErr)), nil
		}
		card.Fields = fields
	}
	if body, bErr := req.RequireString("body"); bErr == nil {
		card.Body = body
	}

	if err := s.nb.SaveCard(section, card); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.db != nil {
		_ = index.UpsertGraphCard(s.db, card)
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", card.FilePath())), nil
}

func (s *Server) deleteCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	section, err := req.RequireString("section")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var path string
	if card := s.nb.Card(section, id); card != nil {
		path = card.FilePath()
	}
	if err := s.nb.DeleteCard(section, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.db != nil && path != "" {
		_ = s.db.DeleteCard(path)
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s/%s", section, id)), nil
}

func (s *Server) searchCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.db == nil {
		return mcp.NewToolResultError("search index disabled"), nil
	}
	results, err := s.db.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) reloadNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.nb.Reload(true); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g := s.nb.Graph()
	total := 0
	if g.Root != nil {
		total = len(g.Root.Cards)
	}
	for _, sect := range g.Sections {
		total += len(sect.Cards)
	}
	return mcp.NewToolResultText(fmt.Sprintf("reloaded: %d sections, %d cards", len(g.Sections), total)), nil
}

func (s *Server) getCardContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CardFormatContract), nil
}

func (s *Server) readCardFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://card-format",
			MIMEType: "text/markdown",
			Text:     CardFormatContract,
		},
	}, nil
}
