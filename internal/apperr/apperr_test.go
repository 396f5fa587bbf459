package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want error
		code string
	}{
		{Validation("owner_id", "is required"), ErrValidation, "validation_error"},
		{Unavailable("embedding", errors.New("dial tcp")), ErrProviderUnavailable, "provider_unavailable"},
		{&ToolExecutionError{Tool: "distance", Err: errors.New("bad coords")}, ErrToolExecution, "tool_execution_error"},
		{&TimeoutError{Operation: "delegation", After: time.Second}, ErrTimeout, "timeout"},
		{Configuration("prompts.system", "must not be empty"), ErrConfiguration, "configuration_error"},
		{NotFound("document", 7), ErrNotFound, "not_found"},
	}
	for _, tt := range tests {
		wrapped := fmt.Errorf("outer: %w", tt.err)
		if !errors.Is(wrapped, tt.want) {
			t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.want)
		}
		if got := Code(wrapped); got != tt.code {
			t.Errorf("Code(%v) = %q, want %q", wrapped, got, tt.code)
		}
	}
}

func TestUnavailableKeepsInnermostProvider(t *testing.T) {
	inner := Unavailable("elasticsearch", errors.New("connection refused"))
	outer := Unavailable("retriever", fmt.Errorf("search: %w", inner))

	var pe *ProviderUnavailableError
	if !errors.As(outer, &pe) {
		t.Fatal("expected ProviderUnavailableError")
	}
	if pe.Provider != "elasticsearch" {
		t.Errorf("provider = %q, want elasticsearch", pe.Provider)
	}
	if Unavailable("x", nil) != nil {
		t.Error("Unavailable(nil) should be nil")
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		text string
		want Language
	}{
		{"What is the price for the flat?", English},
		{"Bonjour, quel est le prix pour une nuit ?", French},
		{"12345", English},
		{"", English},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.text); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestUserMessageHidesInternalDetail(t *testing.T) {
	err := Unavailable("openai", errors.New("401 invalid api key sk-123"))
	msg := UserMessage(err, English)
	if strings.Contains(msg, "sk-123") {
		t.Errorf("user message leaked provider detail: %q", msg)
	}

	msg = UserMessage(Validation("owner_id", "is required for owner scope"), French)
	if !strings.Contains(msg, "owner_id") || !strings.HasPrefix(msg, "Il manque") {
		t.Errorf("unexpected french validation message: %q", msg)
	}

	msg = UserMessage(&TimeoutError{Operation: "delegation", After: 30 * time.Second}, English)
	if !strings.Contains(msg, "too long") {
		t.Errorf("timeout message = %q", msg)
	}
}
