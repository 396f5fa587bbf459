// Package apperr defines the error taxonomy shared by every hostkb component
// and maps errors to user-facing messages.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels matched with errors.Is. Every typed error below unwraps to one of them.
var (
	ErrValidation          = errors.New("validation error")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrToolExecution       = errors.New("tool execution failed")
	ErrTimeout             = errors.New("timeout")
	ErrConfiguration       = errors.New("configuration error")
	ErrNotFound            = errors.New("not found")
)

// ValidationError reports a malformed or under-specified request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validation builds a ValidationError.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ProviderUnavailableError wraps a failure to reach the embedding provider,
// the search engine or the language model.
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

func (e *ProviderUnavailableError) Is(target error) bool { return target == ErrProviderUnavailable }

// Unavailable wraps err as a ProviderUnavailableError. A nil err yields nil.
func Unavailable(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderUnavailableError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderUnavailableError{Provider: provider, Err: err}
}

// ToolExecutionError reports that one tool invocation failed.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

func (e *ToolExecutionError) Is(target error) bool { return target == ErrToolExecution }

// TimeoutError reports that an operation exceeded its deadline.
type TimeoutError struct {
	Operation string
	After     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// ConfigurationError reports missing or invalid startup configuration.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Message)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Configuration builds a ConfigurationError.
func Configuration(key, format string, args ...any) error {
	return &ConfigurationError{Key: key, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds an error matching ErrNotFound.
func NotFound(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)
}

// Code returns a stable machine-readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, ErrToolExecution):
		return "tool_execution_error"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	default:
		return "internal_error"
	}
}
