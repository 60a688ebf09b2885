// Package provider abstracts the third-party transcription and
// summarization backends behind uniform strategy interfaces. Each
// implementation is a thin HTTP wrapper; selection happens in the
// factory based on a ModelConfig row.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// TranscribeOptions carries per-call options for transcription.
type TranscribeOptions struct {
	Language string
}

// TranscriptionResult is the outcome of one transcription call.
type TranscriptionResult struct {
	Text            string
	DurationSeconds *float64
	Language        string
	Confidence      *float64
	Segments        []Segment
}

// Segment is one timed slice of a transcription.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SummarizeOptions carries per-call options for summarization.
type SummarizeOptions struct {
	Style     string
	MaxLength int
}

// SummaryResult is the outcome of one summarization call.
type SummaryResult struct {
	Summary      string
	TokensUsed   *int
	InputTokens  int
	OutputTokens int
	Model        string
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) (*TranscriptionResult, error)
	// EstimateCost returns the estimated USD cost for audio of the
	// given duration.
	EstimateCost(durationSeconds float64) float64
}

// Summarizer turns a transcription into a summary.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, text string, opts SummarizeOptions) (*SummaryResult, error)
	// EstimateCost returns the estimated USD cost for the given token
	// counts.
	EstimateCost(inputTokens, outputTokens int) float64
}

// Error is the failure type all providers return. Retryable marks
// transient conditions (timeouts, rate limits, 5xx) that the queue layer
// may retry; everything else is permanent.
type Error struct {
	Provider  string
	Op        string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Temporary reports whether the failure is transient. Satisfies the
// interface the queue layer uses for its retry-vs-abandon decision.
func (e *Error) Temporary() bool { return e.Retryable }

// Transient wraps err as a retryable provider failure.
func Transient(providerName, op string, err error) *Error {
	return &Error{Provider: providerName, Op: op, Retryable: true, Err: err}
}

// Permanent wraps err as a non-retryable provider failure.
func Permanent(providerName, op string, err error) *Error {
	return &Error{Provider: providerName, Op: op, Retryable: false, Err: err}
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// retryableStatus classifies an HTTP status code.
func retryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// wrapHTTPStatus builds a provider error from a non-2xx response.
func wrapHTTPStatus(providerName, op string, code int, body string) *Error {
	err := fmt.Errorf("unexpected status %d: %s", code, truncate(body, 300))
	if retryableStatus(code) {
		return Transient(providerName, op, err)
	}
	return Permanent(providerName, op, err)
}

// asProviderError extracts a *Error from an error chain.
func asProviderError(err error, target **Error) bool {
	return errors.As(err, target)
}

// floatOption reads a numeric option from a model config blob.
func floatOption(opts map[string]any, key string, fallback float64) float64 {
	if v, ok := opts[key].(float64); ok && v > 0 {
		return v
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
