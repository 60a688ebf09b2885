package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"scribber/internal/model"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"
)

// anthropicSummarizer summarizes text with the Anthropic messages API.
type anthropicSummarizer struct {
	apiKey           string
	url              string
	modelName        string
	maxTokens        int
	inputTokenPrice  float64
	outputTokenPrice float64
	httpClient       *http.Client
}

func newAnthropicSummarizer(apiKey string, cfg *model.ModelConfig) *anthropicSummarizer {
	maxTokens := 4096
	if v, ok := cfg.Options()["max_tokens"].(float64); ok && v > 0 {
		maxTokens = int(v)
	}

	return &anthropicSummarizer{
		apiKey:           apiKey,
		url:              cfg.StringOption("api_url", anthropicMessagesURL),
		modelName:        cfg.StringOption("model", "claude-3-5-haiku-latest"),
		maxTokens:        maxTokens,
		inputTokenPrice:  floatOption(cfg.Options(), "input_token_price", 0.0000008),
		outputTokenPrice: floatOption(cfg.Options(), "output_token_price", 0.000004),
		httpClient:       &http.Client{Timeout: 10 * time.Minute},
	}
}

func (s *anthropicSummarizer) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (s *anthropicSummarizer) Summarize(ctx context.Context, text string, opts SummarizeOptions) (*SummaryResult, error) {
	payload, err := json.Marshal(anthropicRequest{
		Model:     s.modelName,
		MaxTokens: s.maxTokens,
		System:    summarySystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: buildSummaryPrompt(text, opts)},
		},
	})
	if err != nil {
		return nil, Permanent(s.Name(), "summarize", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, Permanent(s.Name(), "summarize", err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, Transient(s.Name(), "summarize", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient(s.Name(), "summarize", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, wrapHTTPStatus(s.Name(), "summarize", resp.StatusCode, string(body))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, Permanent(s.Name(), "summarize", fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Content) == 0 {
		return nil, Transient(s.Name(), "summarize", fmt.Errorf("empty content in response"))
	}

	total := parsed.Usage.InputTokens + parsed.Usage.OutputTokens
	return &SummaryResult{
		Summary:      parsed.Content[0].Text,
		TokensUsed:   &total,
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
		Model:        parsed.Model,
	}, nil
}

func (s *anthropicSummarizer) EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*s.inputTokenPrice + float64(outputTokens)*s.outputTokenPrice
}
