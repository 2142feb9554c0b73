// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes note search and upload tools for LLM integration via stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/studynotes/internal/apperr"
	"github.com/starford/studynotes/internal/identity"
	"github.com/starford/studynotes/internal/models"
	"github.com/starford/studynotes/internal/notequery"
	"github.com/starford/studynotes/internal/noteservice"
)

const rulesURI = "studynotes://upload-rules"

// Server wraps the MCP server with the note tools.
type Server struct {
	mcp   *server.MCPServer
	notes *noteservice.Service
	idp   identity.Provider
}

// New creates a new MCP server with all tools registered. Every tool that
// touches notes takes the caller's bearer token.
func New(notes *noteservice.Service, idp identity.Provider, version string) *Server {
	s := &Server{notes: notes, idp: idp}

	s.mcp = server.NewMCPServer(
		"studynotes",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search the caller's study notes by title, tag, date range and file type."),
		mcp.WithString("token", mcp.Required(), mcp.Description("Bearer token from /auth/signin")),
		mcp.WithString("title", mcp.Description("Case-insensitive title substring")),
		mcp.WithString("tag", mcp.Description("Exact tag")),
		mcp.WithString("date_from", mcp.Description("ISO-8601 lower bound; ignored unless date_to is also set")),
		mcp.WithString("date_to", mcp.Description("ISO-8601 upper bound; ignored unless date_from is also set")),
		mcp.WithArray("file_types", mcp.WithStringItems(), mcp.Description("File types such as PDF or DOCX")),
		mcp.WithString("sort_field", mcp.Description("created_at, file_name, file_type or relevance")),
		mcp.WithString("sort_order", mcp.Description("asc or desc")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("suggest_titles",
		mcp.WithDescription("Suggest titles of the caller's notes matching a partial title."),
		mcp.WithString("token", mcp.Required(), mcp.Description("Bearer token from /auth/signin")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Partial title, at least two characters")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of titles (default 5, max 20)")),
	), s.suggestTitles)

	s.mcp.AddTool(mcp.NewTool("get_upload_rules",
		mcp.WithDescription("Returns the accepted file types and size limit for note uploads. "+
			"Call this before upload_note."),
	), s.getUploadRules)

	s.mcp.AddTool(mcp.NewTool("upload_note",
		mcp.WithDescription("Upload a note file given as a base64 data URI."),
		mcp.WithString("token", mcp.Required(), mcp.Description("Bearer token from /auth/signin")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("filename", mcp.Required(), mcp.Description("File name including the extension")),
		mcp.WithString("data", mcp.Required(), mcp.Description("data:<mime>;base64,<payload>")),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithString("tags", mcp.Description("Comma separated tags")),
	), s.uploadNote)

	s.mcp.AddResource(
		mcp.NewResource(rulesURI, "Upload Rules",
			mcp.WithResourceDescription("Accepted file types and size limit for note uploads."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRulesResource,
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

// caller resolves the token argument. The returned result is non-nil when
// the tool must stop.
func (s *Server) caller(ctx context.Context, req mcp.CallToolRequest) (*models.Identity, *mcp.CallToolResult) {
	token, err := req.RequireString("token")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	id, err := s.idp.Verify(ctx, token)
	if err != nil {
		return nil, mcp.NewToolResultError("unauthorized")
	}
	return id, nil
}

func toolError(err error) *mcp.CallToolResult {
	var ue *apperr.UpstreamError
	if errors.As(err, &ue) {
		return mcp.NewToolResultError(ue.Op + " failed")
	}
	return mcp.NewToolResultError(apperr.Message(err))
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, stop := s.caller(ctx, req)
	if stop != nil {
		return stop, nil
	}
	notes, err := s.notes.Search(ctx, id.UserID, notequery.Params{
		Title:     req.GetString("title", ""),
		Tag:       req.GetString("tag", ""),
		From:      req.GetString("date_from", ""),
		To:        req.GetString("date_to", ""),
		FileTypes: req.GetStringSlice("file_types", nil),
		SortField: req.GetString("sort_field", ""),
		SortOrder: req.GetString("sort_order", ""),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(notes), nil
}

func (s *Server) suggestTitles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, stop := s.caller(ctx, req)
	if stop != nil {
		return stop, nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	titles, err := s.notes.Suggestions(ctx, id.UserID, query, req.GetInt("limit", 0))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(titles), nil
}

func (s *Server) getUploadRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(noteservice.UploadRules()), nil
}

func (s *Server) readRulesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      rulesURI,
			MIMEType: "text/markdown",
			Text:     UploadRulesDoc(),
		},
	}, nil
}
