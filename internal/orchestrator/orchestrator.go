// Package orchestrator runs the conversational cycle: admit the message
// through the concurrency gate, classify it, answer directly or delegate to
// a tool-using agent, then record the exchange in session memory.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/gate"
	"github.com/ziadkadry99/hostkb/internal/llm"
	"github.com/ziadkadry99/hostkb/internal/session"
	"github.com/ziadkadry99/hostkb/internal/tools"
)

const (
	DefaultMaxIterations   = 4
	DefaultDelegateTimeout = 30 * time.Second
	DefaultAgentTemp       = 0.1
)

// ToolRunner is the part of the tool registry the orchestrator uses.
type ToolRunner interface {
	Specs() []llm.ToolSpec
	Invoke(ctx context.Context, name string, args json.RawMessage) tools.Outcome
}

// Prompts are the instructions given to the models.
type Prompts struct {
	// System is the conversational persona used for direct answers.
	System string
	// Agent instructs the tool-using sub-agent.
	Agent string
	// Synthesis asks for a final answer from gathered tool results.
	Synthesis string
	// Wrap asks the conversational model to restyle a factual answer.
	Wrap string
}

// Config holds the orchestrator's collaborators and limits.
type Config struct {
	Provider         llm.Provider
	Model            string
	Temperature      float64
	AgentModel       string
	AgentTemperature float64

	Tools    ToolRunner
	Sessions *session.Store
	Gate     *gate.Gate
	Prompts  Prompts

	MaxIterations   int
	DelegateTimeout time.Duration
	FriendlyWrap    bool

	Classifier Classifier
	Observer   StateObserver
	Logger     *slog.Logger
}

// Request is one incoming user message.
type Request struct {
	SessionID string      `json:"session_id"`
	Message   string      `json:"message"`
	Scope     tools.Scope `json:"-"`
}

// ToolCallRecord describes one tool invocation made while answering.
type ToolCallRecord struct {
	Iteration int             `json:"iteration"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	OK        bool            `json:"ok"`
	Error     string          `json:"error,omitempty"`
	Duration  time.Duration   `json:"duration_ns"`
}

// Result is the outcome of one cycle.
type Result struct {
	SessionID  string           `json:"session_id"`
	Reply      string           `json:"reply"`
	Path       Path             `json:"path"`
	ToolCalls  []ToolCallRecord `json:"tool_calls"`
	Iterations int              `json:"iterations"`
	Duration   time.Duration    `json:"duration_ns"`
	Usage      llm.Usage        `json:"usage"`
}

// Orchestrator answers user messages. It is safe for concurrent use;
// concurrent messages for the same session may record their exchanges in
// either order.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger
}

// New validates cfg, fills defaults and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Provider == nil {
		return nil, apperr.Configuration("llm.provider", "a language model provider is required")
	}
	if cfg.Sessions == nil || cfg.Gate == nil {
		return nil, errors.New("orchestrator: session store and gate are required")
	}
	for key, v := range map[string]string{
		"prompts.system":    cfg.Prompts.System,
		"prompts.agent":     cfg.Prompts.Agent,
		"prompts.synthesis": cfg.Prompts.Synthesis,
		"prompts.wrap":      cfg.Prompts.Wrap,
	} {
		if strings.TrimSpace(v) == "" {
			return nil, apperr.Configuration(key, "must not be empty")
		}
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.DelegateTimeout <= 0 {
		cfg.DelegateTimeout = DefaultDelegateTimeout
	}
	if cfg.AgentModel == "" {
		cfg.AgentModel = cfg.Model
	}
	if cfg.Classifier == nil {
		cfg.Classifier = NewHeuristicClassifier()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, logger: cfg.Logger.With("component", "orchestrator")}, nil
}

// Handle runs one full cycle for req. A slot of the gate is held for the
// whole cycle and released however it ends. On timeout or error nothing is
// written to session memory.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if strings.TrimSpace(req.Message) == "" {
		return nil, apperr.Validation("message", "must not be empty")
	}
	if req.SessionID == "" {
		req.SessionID = session.NewID()
	}
	logger := o.logger.With("session_id", req.SessionID)

	if err := o.cfg.Gate.Acquire(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &apperr.TimeoutError{Operation: "admission", After: time.Since(start)}
		}
		return nil, fmt.Errorf("waiting for a free slot: %w", err)
	}
	defer o.cfg.Gate.Release()

	st := &tracker{sessionID: req.SessionID, current: StateIdle, observer: o.cfg.Observer}
	defer st.to(StateIdle)

	st.to(StateClassifying)
	path := o.cfg.Classifier.Classify(req.Message)
	if o.cfg.Tools == nil {
		path = PathDirect
	}

	history := historyMessages(o.cfg.Sessions.History(req.SessionID))
	lang := apperr.DetectLanguage(req.Message)
	res := &Result{SessionID: req.SessionID, Path: path, ToolCalls: []ToolCallRecord{}}
	unwrapped := false

	switch path {
	case PathDirect:
		st.to(StateDirectAnswer)
		reply, err := o.direct(ctx, history, req.Message, lang, &res.Usage)
		if err != nil {
			logger.Error("direct answer failed", "error", err)
			return nil, err
		}
		res.Reply = reply

	default:
		st.to(StateDelegating)
		out, err := o.delegateWithTimeout(ctx, req, history, lang)
		if err != nil {
			logger.Warn("delegation failed", "error", err)
			return nil, err
		}
		res.Reply = out.answer
		res.ToolCalls = out.records
		res.Iterations = out.iterations
		res.Usage = out.usage
		unwrapped = out.allFailed
	}

	st.to(StateResponding)
	if path == PathDelegated && o.cfg.FriendlyWrap && !unwrapped {
		res.Reply = o.wrap(ctx, req.Message, res.Reply, lang, &res.Usage, logger)
	}
	o.cfg.Sessions.Append(req.SessionID, req.Message, res.Reply)

	res.Duration = time.Since(start)
	logger.Info("message handled",
		"path", res.Path,
		"tool_calls", len(res.ToolCalls),
		"iterations", res.Iterations,
		"duration", res.Duration,
		"llm_calls", res.Usage.Calls,
		"estimated_cost_usd", res.Usage.Cost(o.cfg.Model),
	)
	return res, nil
}

// direct answers from the system prompt, history and message alone.
func (o *Orchestrator) direct(ctx context.Context, history []llm.Message, message string, lang apperr.Language, usage *llm.Usage) (string, error) {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: withLanguage(o.cfg.Prompts.System, lang)})
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})

	resp, err := o.cfg.Provider.Complete(ctx, llm.CompletionRequest{
		Model:       o.cfg.Model,
		Messages:    msgs,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("direct answer: %w", err)
	}
	usage.Add(resp)
	return strings.TrimSpace(resp.Content), nil
}

// wrap restyles a factual answer with the conversational model. Facts must
// survive verbatim; on any failure the raw answer is kept.
func (o *Orchestrator) wrap(ctx context.Context, question, answer string, lang apperr.Language, usage *llm.Usage, logger *slog.Logger) string {
	if strings.TrimSpace(answer) == "" {
		return answer
	}
	resp, err := o.cfg.Provider.Complete(ctx, llm.CompletionRequest{
		Model: o.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: withLanguage(o.cfg.Prompts.Wrap, lang)},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Guest question:\n%s\n\nAnswer to rephrase:\n%s", question, answer)},
		},
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		logger.Warn("friendly wrap failed, using raw answer", "error", err)
		return answer
	}
	usage.Add(resp)
	if wrapped := strings.TrimSpace(resp.Content); wrapped != "" {
		return wrapped
	}
	return answer
}

func historyMessages(exchanges []session.Exchange) []llm.Message {
	msgs := make([]llm.Message, 0, 2*len(exchanges))
	for _, ex := range exchanges {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: ex.Input},
			llm.Message{Role: llm.RoleAssistant, Content: ex.Output},
		)
	}
	return msgs
}

func withLanguage(prompt string, lang apperr.Language) string {
	if lang == apperr.French {
		return prompt + "\n\nRéponds en français."
	}
	return prompt
}
