// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes hfx tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/hfx/internal/apperr"
	"github.com/starford/hfx/internal/subset"
)

// Server wraps the MCP server with hfx tools.
type Server struct {
	mcp       *server.MCPServer
	svc       *subset.Service
	outputDir string
}

// New creates a new MCP server with all hfx tools registered. Extract
// outputs are confined to outputDir.
func New(svc *subset.Service, version, outputDir string) (*Server, error) {
	dir, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: output dir: %w", err)
	}
	s := &Server{svc: svc, outputDir: dir}

	s.mcp = server.NewMCPServer(
		"hfx",
		version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("classify_identifiers",
		mcp.WithDescription("Classify hydrofabric identifiers (cat-, wb-, nex-, cnx-, tnx-) by prefix. "+
			"Does not read any dataset."),
		mcp.WithString("ids", mcp.Required(), mcp.Description("Identifiers separated by commas or spaces (e.g. cat-32,nex-85)")),
	), s.classifyIdentifiers)

	s.mcp.AddTool(mcp.NewTool("resolve_identifiers",
		mcp.WithDescription("Resolve identifiers against the hydrofabric network table and return the "+
			"complete set of related catchments, waterbodies and nexuses as JSON."),
		mcp.WithString("ids", mcp.Required(), mcp.Description("Identifiers separated by commas or spaces")),
	), s.resolveIdentifiers)

	s.mcp.AddTool(mcp.NewTool("extract_hydrofabric",
		mcp.WithDescription("Resolve identifiers and write the matching divides, flowpaths and nexus "+
			"features to a new GeoPackage."),
		mcp.WithString("ids", mcp.Required(), mcp.Description("Identifiers separated by commas or spaces")),
		mcp.WithString("output", mcp.Required(),
			mcp.Description("Output GeoPackage path relative to the server's output directory (e.g. subset.gpkg)")),
		mcp.WithBoolean("overwrite", mcp.Description("Replace the output file if it already exists")),
	), s.extractHydrofabric)

	return s, nil
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) classifyIdentifiers(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := requireIDs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(s.svc.Classify(ids), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) resolveIdentifiers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := requireIDs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	spec, err := s.svc.Resolve(ctx, ids)
	if err != nil {
		return mcp.NewToolResultError(toolError(err)), nil
	}
	out, _ := json.MarshalIndent(spec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) extractHydrofabric(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := requireIDs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	output, err := s.outputPath(name, req.GetBool("overwrite", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.svc.Extract(ctx, ids, output)
	if err != nil {
		return mcp.NewToolResultError(toolError(err)), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

// outputPath resolves name inside the output directory. Absolute paths and
// paths escaping the directory are rejected.
func (s *Server) outputPath(name string, overwrite bool) (string, error) {
	if !strings.HasSuffix(name, ".gpkg") {
		return "", errors.New("output must end with .gpkg")
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("output %q must be a relative path inside the output directory", name)
	}
	path := filepath.Join(s.outputDir, name)
	if _, err := os.Stat(path); err == nil && !overwrite {
		return "", fmt.Errorf("output %q already exists; set overwrite to replace it", name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return path, nil
}

func requireIDs(req mcp.CallToolRequest) ([]string, error) {
	raw, err := req.RequireString("ids")
	if err != nil {
		return nil, err
	}
	ids := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(ids) == 0 {
		return nil, errors.New("ids is empty")
	}
	return ids, nil
}

func toolError(err error) string {
	switch {
	case errors.Is(err, apperr.ErrEmptyResolution):
		return fmt.Sprintf("no matching features: %v", err)
	default:
		return err.Error()
	}
}
