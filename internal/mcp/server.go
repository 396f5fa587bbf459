// Package mcp serves the hostkb tool registry over the Model Context
// Protocol on stdio.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/hostkb/internal/orchestrator"
	"github.com/ziadkadry99/hostkb/internal/tools"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Registry is the part of the tool registry served over MCP.
type Registry interface {
	Definitions() []mcp.Tool
	Invoke(ctx context.Context, name string, args json.RawMessage) tools.Outcome
}

// Assistant answers free-form questions through the full conversation cycle.
type Assistant interface {
	Handle(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// Server wraps an MCP server exposing every registered tool. Calls run in
// the fixed scope the server was started with.
type Server struct {
	registry  Registry
	assistant Assistant
	scope     tools.Scope
	logger    *slog.Logger
	mcp       *server.MCPServer
	names     []string
}

// Option configures a Server.
type Option func(*Server)

// WithAssistant adds the ask_host_assistant tool backed by a.
func WithAssistant(a Assistant) Option {
	return func(s *Server) { s.assistant = a }
}

// WithLogger sets the logger. It must not write to stdout.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates an MCP server for reg, scoped to scope.
func NewServer(reg Registry, scope tools.Scope, opts ...Option) *Server {
	s := &Server{
		registry: reg,
		scope:    scope,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "mcp")

	s.mcp = server.NewMCPServer(
		"hostkb",
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	for _, def := range s.registry.Definitions() {
		s.mcp.AddTool(def, s.handleTool(def.Name))
		s.names = append(s.names, def.Name)
	}
	if s.assistant != nil {
		s.mcp.AddTool(askAssistantTool, s.handleAsk)
		s.names = append(s.names, askAssistantTool.Name)
	}
}

// ToolNames lists the served tools in registration order.
func (s *Server) ToolNames() []string {
	return append([]string(nil), s.names...)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
