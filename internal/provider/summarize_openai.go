package provider

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"scribber/internal/model"
)

// openAISummarizer summarizes text with the OpenAI chat completions API.
type openAISummarizer struct {
	client           *openai.Client
	modelName        string
	inputTokenPrice  float64
	outputTokenPrice float64
}

func newOpenAISummarizer(apiKey string, cfg *model.ModelConfig) *openAISummarizer {
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.APIEndpoint != nil && *cfg.APIEndpoint != "" {
		clientCfg.BaseURL = *cfg.APIEndpoint
	}

	return &openAISummarizer{
		client:           openai.NewClientWithConfig(clientCfg),
		modelName:        cfg.StringOption("model", openai.GPT4oMini),
		inputTokenPrice:  floatOption(cfg.Options(), "input_token_price", 0.00000015),
		outputTokenPrice: floatOption(cfg.Options(), "output_token_price", 0.0000006),
	}
}

func (s *openAISummarizer) Name() string { return "openai" }

func (s *openAISummarizer) Summarize(ctx context.Context, text string, opts SummarizeOptions) (*SummaryResult, error) {
	req := openai.ChatCompletionRequest{
		Model: s.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildSummaryPrompt(text, opts)},
		},
		Temperature: 0.3,
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(s.Name(), "summarize", err)
	}
	if len(resp.Choices) == 0 {
		return nil, Transient(s.Name(), "summarize", fmt.Errorf("no choices in response"))
	}

	total := resp.Usage.TotalTokens
	return &SummaryResult{
		Summary:      resp.Choices[0].Message.Content,
		TokensUsed:   &total,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
	}, nil
}

func (s *openAISummarizer) EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*s.inputTokenPrice + float64(outputTokens)*s.outputTokenPrice
}
