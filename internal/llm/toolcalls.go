package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ToolCatalogue renders tool specs as a system prompt section for providers
// without native function calling. The model is asked to answer with a JSON
// array of {"name", "arguments"} objects when it needs tools.
func ToolCatalogue(tools []ToolSpec) string {
	var sb strings.Builder
	sb.WriteString("You can call the following tools:\n\n")
	for _, t := range tools {
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name, t.Description)
		if len(t.Parameters) > 0 {
			fmt.Fprintf(&sb, "  parameters (JSON Schema): %s\n", compactJSON(t.Parameters))
		}
	}
	sb.WriteString("\nTo call tools, reply with ONLY a JSON array such as ")
	sb.WriteString(`[{"name": "tool_name", "arguments": {"key": "value"}}]`)
	sb.WriteString(" and nothing else. Several calls may be listed. ")
	sb.WriteString("If you can answer without tools, reply in plain text.")
	return sb.String()
}

// withToolCatalogue rewrites a request for a provider without native tools:
// the catalogue is prepended as a system message and tool traffic in the
// history is flattened into plain text turns.
func withToolCatalogue(req CompletionRequest) CompletionRequest {
	if len(req.Tools) == 0 {
		return req
	}
	msgs := make([]Message, 0, len(req.Messages)+1)
	msgs = append(msgs, Message{Role: RoleSystem, Content: ToolCatalogue(req.Tools)})
	for _, m := range req.Messages {
		switch {
		case m.Role == RoleTool:
			msgs = append(msgs, Message{Role: RoleUser, Content: fmt.Sprintf("Result of tool %s:\n%s", m.Name, m.Content)})
		case m.Role == RoleAssistant && len(m.ToolCalls) > 0:
			data, _ := json.Marshal(m.ToolCalls)
			msgs = append(msgs, Message{Role: RoleAssistant, Content: string(data)})
		default:
			msgs = append(msgs, m)
		}
	}
	req.Messages = msgs
	req.Tools = nil
	return req
}

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// ParseToolCalls extracts tool-call descriptors a model wrote as text
// instead of returning them natively. It accepts a bare JSON array, a single
// object, a {"tool_calls": [...]} wrapper or any of those inside a fenced
// code block. Descriptors may be {"name", "arguments"} or OpenAI style
// {"function": {"name", "arguments"}}, with arguments as an object or a
// JSON-encoded string. It returns nil when content holds no complete,
// well-formed descriptor list.
func ParseToolCalls(content string) []ToolCall {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	candidates := []string{content}
	for _, m := range fencedBlock.FindAllStringSubmatch(content, -1) {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if i, j := strings.Index(content, "["), strings.LastIndex(content, "]"); i >= 0 && j > i {
		candidates = append(candidates, content[i:j+1])
	}
	if i, j := strings.Index(content, "{"), strings.LastIndex(content, "}"); i >= 0 && j > i {
		candidates = append(candidates, content[i:j+1])
	}

	for _, c := range candidates {
		if calls := decodeToolCalls(c); len(calls) > 0 {
			for i := range calls {
				if calls[i].ID == "" {
					calls[i].ID = fmt.Sprintf("call_%d", i)
				}
			}
			return calls
		}
	}
	return nil
}

func decodeToolCalls(s string) []ToolCall {
	var list []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(s), &obj); err != nil {
			return nil
		}
		if inner, ok := obj["tool_calls"]; ok {
			if err := json.Unmarshal(inner, &list); err != nil {
				return nil
			}
		} else {
			list = []map[string]json.RawMessage{obj}
		}
	}
	if len(list) == 0 {
		return nil
	}

	calls := make([]ToolCall, 0, len(list))
	for _, m := range list {
		call, ok := decodeDescriptor(m)
		if !ok {
			return nil
		}
		calls = append(calls, call)
	}
	return calls
}

func decodeDescriptor(m map[string]json.RawMessage) (ToolCall, bool) {
	var call ToolCall
	if raw, ok := m["id"]; ok {
		_ = json.Unmarshal(raw, &call.ID)
	}
	if fn, ok := m["function"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(fn, &inner); err != nil {
			return call, false
		}
		m = inner
	}

	for _, key := range []string{"name", "tool"} {
		if raw, ok := m[key]; ok {
			if err := json.Unmarshal(raw, &call.Name); err != nil {
				return call, false
			}
			break
		}
	}
	if strings.TrimSpace(call.Name) == "" {
		return call, false
	}

	call.Arguments = json.RawMessage("{}")
	for _, key := range []string{"arguments", "args", "parameters", "input"} {
		raw, ok := m[key]
		if !ok {
			continue
		}
		args, ok := normalizeArguments(raw)
		if !ok {
			return call, false
		}
		call.Arguments = args
		break
	}
	return call, true
}

// normalizeArguments accepts an object or a string holding an object.
func normalizeArguments(raw json.RawMessage) (json.RawMessage, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return json.RawMessage("{}"), true
		}
		raw = json.RawMessage(s)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return raw, true
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
