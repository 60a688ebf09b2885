package provider

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"scribber/internal/model"
)

const whisperDefaultPricePerMinute = 0.006

// whisperTranscriber transcribes audio with the OpenAI audio API.
type whisperTranscriber struct {
	client         *openai.Client
	modelName      string
	pricePerMinute float64
}

func newWhisperTranscriber(apiKey string, cfg *model.ModelConfig) *whisperTranscriber {
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.APIEndpoint != nil && *cfg.APIEndpoint != "" {
		clientCfg.BaseURL = *cfg.APIEndpoint
	}

	return &whisperTranscriber{
		client:         openai.NewClientWithConfig(clientCfg),
		modelName:      cfg.StringOption("model", openai.Whisper1),
		pricePerMinute: floatOption(cfg.Options(), "price_per_minute", whisperDefaultPricePerMinute),
	}
}

func (t *whisperTranscriber) Name() string { return "openai" }

func (t *whisperTranscriber) Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) (*TranscriptionResult, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, Permanent(t.Name(), "transcribe", fmt.Errorf("audio file unreadable: %w", err))
	}

	req := openai.AudioRequest{
		Model:    t.modelName,
		FilePath: audioPath,
		Language: opts.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	resp, err := t.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(t.Name(), "transcribe", err)
	}

	result := &TranscriptionResult{
		Text:     resp.Text,
		Language: resp.Language,
	}
	if resp.Duration > 0 {
		d := resp.Duration
		result.DurationSeconds = &d
	}
	for _, s := range resp.Segments {
		result.Segments = append(result.Segments, Segment{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}
	return result, nil
}

func (t *whisperTranscriber) EstimateCost(durationSeconds float64) float64 {
	return durationSeconds / 60.0 * t.pricePerMinute
}

// classifyOpenAIError maps go-openai failures onto the provider error
// taxonomy. Network-level failures are treated as transient.
func classifyOpenAIError(providerName, op string, err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if retryableStatus(apiErr.HTTPStatusCode) {
			return Transient(providerName, op, err)
		}
		return Permanent(providerName, op, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if retryableStatus(reqErr.HTTPStatusCode) {
			return Transient(providerName, op, err)
		}
		return Permanent(providerName, op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Transient(providerName, op, err)
	}
	return Transient(providerName, op, err)
}
