package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
)

// ServeStdio runs the server over stdin/stdout. Logging must already be
// pointed at stderr or a file; stdout belongs to the protocol.
func (s *Server) ServeStdio() error {
	log.Info().Msg("Serving MCP over stdio")
	return server.ServeStdio(s.mcp)
}

// ServeHTTP runs the server over HTTP/SSE under /mcp
func (s *Server) ServeHTTP(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	sseServer := server.NewSSEServer(s.mcp,
		server.WithBaseURL("http://"+addr),
		server.WithStaticBasePath("/mcp"),
	)
	log.Info().Str("addr", addr).Str("base_path", "/mcp").Msg("Serving MCP over HTTP/SSE")
	return sseServer.Start(addr)
}
