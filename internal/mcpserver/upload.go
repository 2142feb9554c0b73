package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/studynotes/internal/noteservice"
)

// sniffable maps extensions to the type http.DetectContentType reports for
// genuine files. Office formats are not sniffed.
var sniffable = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".txt":  "text/plain",
}

func (s *Server) uploadNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, stop := s.caller(ctx, req)
	if stop != nil {
		return stop, nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	uri, err := req.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, mimeType, err := decodeDataURI(uri)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > noteservice.MaxUploadBytes {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), noteservice.MaxUploadBytes)), nil
	}
	if err := validateMagicBytes(data, filepath.Ext(filename)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	note, err := s.notes.Upload(ctx, noteservice.UploadInput{
		Owner:       id.UserID,
		Title:       title,
		Description: req.GetString("description", ""),
		Tags:        req.GetString("tags", ""),
		FileName:    filename,
		ContentType: mimeType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(note), nil
}

// decodeDataURI parses a data:[<mediatype>];base64,<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("data must be a data URI")
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	mimeType := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	return data, mimeType, nil
}

// validateMagicBytes verifies file content matches the declared extension
// for the formats that can be sniffed.
func validateMagicBytes(data []byte, ext string) error {
	want, ok := sniffable[strings.ToLower(ext)]
	if !ok {
		return nil
	}
	detected := http.DetectContentType(data)
	if strings.Split(detected, ";")[0] != want {
		return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
	}
	return nil
}
