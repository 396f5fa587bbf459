// Package tools is the registry of data tools the assistant can call.
// Every tool publishes an MCP tool definition whose input schema doubles as
// the function-calling schema handed to the language model, decodes its
// arguments into a typed struct and reports failures as an Outcome instead
// of aborting its siblings.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/llm"
)

// Tool is one callable capability.
type Tool interface {
	// Definition returns the MCP tool definition, including its input schema.
	Definition() mcp.Tool
	// Invoke runs the tool with JSON arguments and returns its text output.
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// Outcome is the result of one invocation: either OK with Output, or a
// failure with Err.
type Outcome struct {
	Tool     string        `json:"tool"`
	CallID   string        `json:"call_id,omitempty"`
	OK       bool          `json:"ok"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration_ns"`
}

// Registry holds tools by name. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger.With("component", "tools"),
	}
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(t Tool) error {
	name := t.Definition().Name
	if name == "" {
		return fmt.Errorf("tool has no name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[name]; dup {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	return nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns the MCP definitions of all tools, sorted by name.
func (r *Registry) Definitions() []mcp.Tool {
	r.mu.RLock()
	defs := make([]mcp.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	r.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Specs returns the tools as function-calling specs for the language model.
func (r *Registry) Specs() []llm.ToolSpec {
	defs := r.Definitions()
	specs := make([]llm.ToolSpec, 0, len(defs))
	for _, d := range defs {
		schema, err := json.Marshal(d.InputSchema)
		if err != nil {
			r.logger.Warn("skipping tool with unencodable schema", "tool", d.Name, "error", err)
			continue
		}
		specs = append(specs, llm.ToolSpec{Name: d.Name, Description: d.Description, Parameters: schema})
	}
	return specs
}

// Invoke runs the named tool. It never panics and never returns an error:
// unknown tools, bad arguments, tool failures and panics all come back as a
// failed Outcome carrying a ToolExecutionError.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (out Outcome) {
	start := time.Now()
	out.Tool = name

	defer func() {
		if p := recover(); p != nil {
			out.fail(fmt.Errorf("panic: %v", p))
		}
		out.Duration = time.Since(start)
		if out.OK {
			r.logger.Debug("tool succeeded", "tool", name, "duration", out.Duration)
		} else {
			r.logger.Warn("tool failed", "tool", name, "duration", out.Duration, "error", out.Err)
		}
	}()

	t, ok := r.Get(name)
	if !ok {
		out.fail(fmt.Errorf("unknown tool"))
		return out
	}
	if err := ctx.Err(); err != nil {
		out.fail(err)
		return out
	}

	text, err := t.Invoke(ctx, args)
	if err != nil {
		out.fail(err)
		return out
	}
	out.OK = true
	out.Output = text
	return out
}

func (o *Outcome) fail(err error) {
	o.OK = false
	o.Output = ""
	o.Err = &apperr.ToolExecutionError{Tool: o.Tool, Err: err}
	o.Error = err.Error()
}
