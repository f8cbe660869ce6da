// Package mcpserver exposes chat and knowledge retrieval as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/bgdnvk/resonance/internal/knowledge"
	"github.com/bgdnvk/resonance/internal/orchestrator"
)

const (
	ToolChat     = "chat"
	ToolRetrieve = "retrieve"
)

// Service is the part of the orchestrator the tools call.
type Service interface {
	Handle(ctx context.Context, req orchestrator.ChatRequest) (orchestrator.ChatResponse, error)
	Retrieve(query string, k int) ([]knowledge.Snippet, error)
}

type Server struct {
	svc    Service
	mcp    *server.MCPServer
	logger *zap.Logger
}

func New(svc Service, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:    svc,
		mcp:    server.NewMCPServer("resonance", version, server.WithToolCapabilities(false), server.WithRecovery()),
		logger: logger,
	}

	s.mcp.AddTool(mcp.NewTool(ToolChat,
		mcp.WithDescription("Send a message through the emotion-aware orchestrator and return the synthesized reply"),
		mcp.WithString("message", mcp.Required(), mcp.Description("The user's message")),
		mcp.WithArray("history", mcp.Description("Prior turns, oldest first"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("companionContext", mcp.Description("Persona or companion context")),
		mcp.WithString("preferredBackend", mcp.Description("Optional backend hint: analytic, empathetic or dual")),
	), s.handleChat)

	s.mcp.AddTool(mcp.NewTool(ToolRetrieve,
		mcp.WithDescription("Search the local knowledge index and return the best matching chunks"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithNumber("k", mcp.Description("Number of results (default 4)")),
	), s.handleRetrieve)

	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio blocks serving JSON-RPC over stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("Serving MCP over stdio")
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.svc.Handle(ctx, orchestrator.ChatRequest{
		Message:          message,
		History:          req.GetStringSlice("history", nil),
		CompanionContext: req.GetString("companionContext", ""),
		PreferredBackend: req.GetString("preferredBackend", ""),
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyMessage) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}
	return jsonResult(resp)
}

func (s *Server) handleRetrieve(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Retrieve(query, req.GetInt("k", knowledge.DefaultTopK))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if hits == nil {
		hits = []knowledge.Snippet{}
	}
	return jsonResult(hits)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
