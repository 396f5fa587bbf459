package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/llm"
	"github.com/ziadkadry99/hostkb/internal/tools"
)

type delegation struct {
	answer     string
	records    []ToolCallRecord
	iterations int
	usage      llm.Usage
	// allFailed is set when no tool call in any round succeeded.
	allFailed bool
}

// delegateWithTimeout runs the sub-agent under the delegation deadline. The
// agent keeps running in its goroutine until it notices the cancelled context,
// but its result is discarded.
func (o *Orchestrator) delegateWithTimeout(ctx context.Context, req Request, history []llm.Message, lang apperr.Language) (*delegation, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.DelegateTimeout)
	defer cancel()

	type outcome struct {
		d   *delegation
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		d, err := o.delegate(tools.WithScope(ctx, req.Scope), history, req.Message, lang)
		done <- outcome{d, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
			return nil, &apperr.TimeoutError{Operation: "delegation", After: time.Since(start)}
		}
		return out.d, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &apperr.TimeoutError{Operation: "delegation", After: time.Since(start)}
		}
		return nil, ctx.Err()
	}
}

// delegate runs the tool loop: ask the agent model, execute whatever tools it
// requests, feed the results back, repeat until it answers in plain text or
// the iteration limit is hit.
func (o *Orchestrator) delegate(ctx context.Context, history []llm.Message, message string, lang apperr.Language) (*delegation, error) {
	d := &delegation{records: []ToolCallRecord{}}
	specs := o.cfg.Tools.Specs()

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: withLanguage(o.cfg.Prompts.Agent, lang)})
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})

	succeeded := 0
	for i := 1; i <= o.cfg.MaxIterations; i++ {
		d.iterations = i
		resp, err := o.cfg.Provider.Complete(ctx, llm.CompletionRequest{
			Model:       o.cfg.AgentModel,
			Messages:    msgs,
			Temperature: o.cfg.AgentTemperature,
			Tools:       specs,
		})
		if err != nil {
			return nil, fmt.Errorf("agent iteration %d: %w", i, err)
		}
		d.usage.Add(resp)

		calls := resp.ToolCalls
		if len(calls) == 0 {
			calls = llm.ParseToolCalls(resp.Content)
		}
		if len(calls) == 0 {
			d.answer = strings.TrimSpace(resp.Content)
			return d, nil
		}

		outcomes := o.runTools(ctx, calls)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: calls})
		failed := 0
		for j, out := range outcomes {
			rec := ToolCallRecord{
				Iteration: i,
				Name:      calls[j].Name,
				Arguments: calls[j].Arguments,
				OK:        out.OK,
				Error:     out.Error,
				Duration:  out.Duration,
			}
			d.records = append(d.records, rec)

			content := out.Output
			if out.OK {
				succeeded++
			} else {
				failed++
				content = "Error: " + out.Error
			}
			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				Content:    content,
				ToolCallID: calls[j].ID,
				Name:       calls[j].Name,
			})
		}

		if failed == len(outcomes) && succeeded == 0 {
			o.logger.Warn("every tool call failed", "iteration", i, "calls", len(calls))
			d.answer = apperr.Message("tools_failed", lang)
			d.allFailed = true
			return d, nil
		}
		if failed == len(outcomes) {
			o.logger.Debug("tool round failed, earlier results kept", "iteration", i, "calls", len(calls))
		}
	}

	// Out of iterations: ask for an answer from what was gathered.
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: o.cfg.Prompts.Synthesis})
	resp, err := o.cfg.Provider.Complete(ctx, llm.CompletionRequest{
		Model:       o.cfg.AgentModel,
		Messages:    msgs,
		Temperature: o.cfg.AgentTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	d.usage.Add(resp)
	d.answer = strings.TrimSpace(resp.Content)
	return d, nil
}

// runTools executes calls concurrently. Failures are recorded in their
// Outcome and never cancel the other calls.
func (o *Orchestrator) runTools(ctx context.Context, calls []llm.ToolCall) []tools.Outcome {
	outcomes := make([]tools.Outcome, len(calls))
	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			out := o.cfg.Tools.Invoke(ctx, call.Name, call.Arguments)
			out.CallID = call.ID
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
