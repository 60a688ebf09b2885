package provider

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"scribber/internal/model"
)

// Qwen models are served through DashScope's OpenAI-compatible endpoint,
// so both strategies ride on the go-openai client with a different base
// URL and model name.
const qwenCompatibleURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

type qwenTranscriber struct {
	inner *whisperTranscriber
}

func newQwenTranscriber(apiKey string, cfg *model.ModelConfig) *qwenTranscriber {
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = qwenCompatibleURL
	if cfg.APIEndpoint != nil && *cfg.APIEndpoint != "" {
		clientCfg.BaseURL = *cfg.APIEndpoint
	}

	return &qwenTranscriber{
		inner: &whisperTranscriber{
			client:         openai.NewClientWithConfig(clientCfg),
			modelName:      cfg.StringOption("model", "qwen-audio-asr"),
			pricePerMinute: floatOption(cfg.Options(), "price_per_minute", 0.002),
		},
	}
}

func (t *qwenTranscriber) Name() string { return "qwen" }

func (t *qwenTranscriber) Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) (*TranscriptionResult, error) {
	res, err := t.inner.Transcribe(ctx, audioPath, opts)
	if err != nil {
		var pe *Error
		if ok := asProviderError(err, &pe); ok {
			pe.Provider = t.Name()
		}
		return nil, err
	}
	return res, nil
}

func (t *qwenTranscriber) EstimateCost(durationSeconds float64) float64 {
	return t.inner.EstimateCost(durationSeconds)
}

type qwenSummarizer struct {
	inner *openAISummarizer
}

func newQwenSummarizer(apiKey string, cfg *model.ModelConfig) *qwenSummarizer {
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = qwenCompatibleURL
	if cfg.APIEndpoint != nil && *cfg.APIEndpoint != "" {
		clientCfg.BaseURL = *cfg.APIEndpoint
	}

	return &qwenSummarizer{
		inner: &openAISummarizer{
			client:           openai.NewClientWithConfig(clientCfg),
			modelName:        cfg.StringOption("model", "qwen-plus"),
			inputTokenPrice:  floatOption(cfg.Options(), "input_token_price", 0.0000004),
			outputTokenPrice: floatOption(cfg.Options(), "output_token_price", 0.0000012),
		},
	}
}

func (s *qwenSummarizer) Name() string { return "qwen" }

func (s *qwenSummarizer) Summarize(ctx context.Context, text string, opts SummarizeOptions) (*SummaryResult, error) {
	res, err := s.inner.Summarize(ctx, text, opts)
	if err != nil {
		var pe *Error
		if ok := asProviderError(err, &pe); ok {
			pe.Provider = s.Name()
		}
		return nil, err
	}
	return res, nil
}

func (s *qwenSummarizer) EstimateCost(inputTokens, outputTokens int) float64 {
	return s.inner.EstimateCost(inputTokens, outputTokens)
}
