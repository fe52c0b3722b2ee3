// Package server exposes the tool catalog over the Model Context
// Protocol, on stdio or HTTP/SSE.
package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/ufpa-tools/sigaa-mcp/internal/dispatch"
	"github.com/ufpa-tools/sigaa-mcp/internal/registry"
)

// ToolDispatcher executes tool requests; every handler goes through it
type ToolDispatcher interface {
	Dispatch(ctx context.Context, req dispatch.ToolRequest) dispatch.ToolResult
}

// Server bridges the registry and dispatcher onto an MCP server
type Server struct {
	mcp        *server.MCPServer
	dispatcher ToolDispatcher
}

// New builds the MCP server and registers every tool in the catalog
func New(name, version string, reg *registry.Registry, dispatcher ToolDispatcher) *Server {
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:        mcpServer,
		dispatcher: dispatcher,
	}

	for _, def := range reg.List() {
		mcpServer.AddTool(toolFromDefinition(def), s.handlerFor(def.Name))
	}

	return s
}

// toolFromDefinition translates a catalog entry into an MCP tool schema
func toolFromDefinition(def registry.ToolDefinition) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(def.Description)}

	for _, p := range def.Parameters {
		propOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}

		switch p.Type {
		case "boolean":
			if v, ok := p.Default.(bool); ok {
				propOpts = append(propOpts, mcp.DefaultBool(v))
			}
			opts = append(opts, mcp.WithBoolean(p.Name, propOpts...))
		case "number", "integer":
			if v, ok := p.Default.(float64); ok {
				propOpts = append(propOpts, mcp.DefaultNumber(v))
			}
			opts = append(opts, mcp.WithNumber(p.Name, propOpts...))
		default:
			if v, ok := p.Default.(string); ok {
				propOpts = append(propOpts, mcp.DefaultString(v))
			}
			if len(p.Enum) > 0 {
				propOpts = append(propOpts, mcp.Enum(p.Enum...))
			}
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		}
	}

	return mcp.NewTool(def.Name, opts...)
}

// handlerFor builds the MCP handler for one tool. Failures become tool
// errors, never protocol errors, so clients always get the normalized
// kind and message.
func (s *Server) handlerFor(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := s.dispatcher.Dispatch(ctx, dispatch.ToolRequest{
			Name:      name,
			Arguments: req.GetArguments(),
		})

		if result.Failure != nil {
			return mcp.NewToolResultError(result.Failure.Error()), nil
		}

		payload, err := json.MarshalIndent(result.Payload, "", "  ")
		if err != nil {
			log.Error().Err(err).Str("tool", name).Msg("Failed to encode tool payload")
			return mcp.NewToolResultError(fmt.Sprintf("%s: failed to encode result", dispatch.KindUnknown)), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}
