package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/orchestrator"
	"github.com/ziadkadry99/hostkb/internal/tools"
)

// askAssistantTool routes a question through the assistant, tools included.
var askAssistantTool = mcp.NewTool("ask_host_assistant",
	mcp.WithDescription("Ask the property assistant a question. It searches the knowledge base and property directory and answers like it would answer a guest."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The guest question to answer"),
	),
	mcp.WithString("session_id",
		mcp.Description("Conversation to continue; omit to start a new one"),
	),
)

// handleTool forwards a call to the registry tool of the same name.
func (s *Server) handleTool(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := rawArguments(request)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		out := s.registry.Invoke(tools.WithScope(ctx, s.scope), name, args)
		if !out.OK {
			return mcp.NewToolResultError(out.Error), nil
		}
		return mcp.NewToolResultText(out.Output), nil
	}
}

// handleAsk answers a question through the assistant.
func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	res, err := s.assistant.Handle(ctx, orchestrator.Request{
		SessionID: request.GetString("session_id", ""),
		Message:   question,
		Scope:     s.scope,
	})
	if err != nil {
		s.logger.Warn("assistant failed", "error", err)
		return mcp.NewToolResultError(apperr.UserMessage(err, apperr.DetectLanguage(question))), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n(session_id: %s)", res.Reply, res.SessionID)), nil
}

// rawArguments re-encodes the call arguments for the registry's typed decoding.
func rawArguments(request mcp.CallToolRequest) (json.RawMessage, error) {
	args := request.GetArguments()
	if args == nil {
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(args)
}
