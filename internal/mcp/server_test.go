package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/orchestrator"
	"github.com/ziadkadry99/hostkb/internal/tools"
)

// mockRegistry records the last invocation.
type mockRegistry struct {
	lastName  string
	lastArgs  json.RawMessage
	lastScope tools.Scope
	fail      bool
}

func (m *mockRegistry) Definitions() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("distance", mcp.WithDescription("distance between two points")),
		mcp.NewTool("knowledge_search", mcp.WithDescription("search"), mcp.WithString("query", mcp.Required())),
	}
}

func (m *mockRegistry) Invoke(ctx context.Context, name string, args json.RawMessage) tools.Outcome {
	m.lastName, m.lastArgs, m.lastScope = name, args, tools.ScopeFrom(ctx)
	if m.fail {
		return tools.Outcome{Tool: name, Error: "backend down", Err: errors.New("backend down")}
	}
	return tools.Outcome{Tool: name, OK: true, Output: "result for " + name}
}

type mockAssistant struct {
	last orchestrator.Request
	err  error
}

func (m *mockAssistant) Handle(_ context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return &orchestrator.Result{SessionID: "sess-1", Reply: "Check-in is from 4pm."}, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty result content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestNewServerRegistersRegistryTools(t *testing.T) {
	srv := NewServer(&mockRegistry{}, tools.Scope{})
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
	got := strings.Join(srv.ToolNames(), ",")
	if got != "distance,knowledge_search" {
		t.Errorf("tools = %s", got)
	}

	srv = NewServer(&mockRegistry{}, tools.Scope{}, WithAssistant(&mockAssistant{}))
	if names := srv.ToolNames(); names[len(names)-1] != "ask_host_assistant" {
		t.Errorf("assistant tool not registered: %v", names)
	}
}

func TestHandleToolForwardsArgumentsAndScope(t *testing.T) {
	reg := &mockRegistry{}
	pid := int64(12)
	srv := NewServer(reg, tools.Scope{OwnerID: "owner-9", PropertyID: &pid})

	res, err := srv.handleTool("knowledge_search")(context.Background(), callRequest("knowledge_search", map[string]any{"query": "late checkout", "top_k": 3}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if got := resultText(t, res); got != "result for knowledge_search" {
		t.Errorf("text = %q", got)
	}
	if reg.lastScope.OwnerID != "owner-9" || reg.lastScope.PropertyID == nil || *reg.lastScope.PropertyID != 12 {
		t.Errorf("scope not forwarded: %+v", reg.lastScope)
	}
	var args map[string]any
	if err := json.Unmarshal(reg.lastArgs, &args); err != nil {
		t.Fatalf("args not JSON: %v", err)
	}
	if args["query"] != "late checkout" {
		t.Errorf("args = %v", args)
	}
}

func TestHandleToolFailureIsToolError(t *testing.T) {
	srv := NewServer(&mockRegistry{fail: true}, tools.Scope{})

	res, err := srv.handleTool("distance")(context.Background(), callRequest("distance", nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !res.IsError {
		t.Error("expected IsError")
	}
	if !strings.Contains(resultText(t, res), "backend down") {
		t.Errorf("text = %q", resultText(t, res))
	}
}

func TestRawArgumentsDefaultsToEmptyObject(t *testing.T) {
	raw, err := rawArguments(callRequest("distance", nil))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "{}" {
		t.Errorf("raw = %s", raw)
	}
}

func TestHandleAsk(t *testing.T) {
	a := &mockAssistant{}
	srv := NewServer(&mockRegistry{}, tools.Scope{OwnerID: "o1"}, WithAssistant(a))

	res, err := srv.handleAsk(context.Background(), callRequest("ask_host_assistant", map[string]any{"question": "When is check-in?"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	text := resultText(t, res)
	if !strings.Contains(text, "Check-in is from 4pm.") || !strings.Contains(text, "sess-1") {
		t.Errorf("text = %q", text)
	}
	if a.last.Scope.OwnerID != "o1" || a.last.Message != "When is check-in?" {
		t.Errorf("request = %+v", a.last)
	}

	res, _ = srv.handleAsk(context.Background(), callRequest("ask_host_assistant", map[string]any{}))
	if !res.IsError {
		t.Error("missing question should be a tool error")
	}

	a.err = apperr.Unavailable("openai", errors.New("401 sk-secret"))
	res, _ = srv.handleAsk(context.Background(), callRequest("ask_host_assistant", map[string]any{"question": "Is there parking?"}))
	if !res.IsError || strings.Contains(resultText(t, res), "sk-secret") {
		t.Errorf("provider detail leaked or not an error: %q", resultText(t, res))
	}
}
