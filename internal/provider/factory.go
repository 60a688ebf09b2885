package provider

import (
	"fmt"

	"scribber/internal/model"
)

// Credentials holds environment-level API keys used when a ModelConfig
// row carries no key of its own.
type Credentials struct {
	OpenAI     string
	Anthropic  string
	ElevenLabs string
	Google     string
	Qwen       string
}

// Factory builds provider strategies from model catalog rows.
type Factory struct {
	creds Credentials
}

// NewFactory creates a provider factory.
func NewFactory(creds Credentials) *Factory {
	return &Factory{creds: creds}
}

// Transcriber returns the transcription strategy for cfg.
func (f *Factory) Transcriber(cfg *model.ModelConfig) (Transcriber, error) {
	if cfg.ModelType != model.ModelTypeTranscription {
		return nil, Permanent(string(cfg.Provider), "configure",
			fmt.Errorf("model %q is not a transcription model", cfg.Name))
	}

	switch cfg.Provider {
	case model.ProviderOpenAI:
		key, err := f.resolveKey(cfg, f.creds.OpenAI)
		if err != nil {
			return nil, err
		}
		return newWhisperTranscriber(key, cfg), nil
	case model.ProviderElevenLabs:
		key, err := f.resolveKey(cfg, f.creds.ElevenLabs)
		if err != nil {
			return nil, err
		}
		return newElevenLabsTranscriber(key, cfg), nil
	case model.ProviderGoogle:
		key, err := f.resolveKey(cfg, f.creds.Google)
		if err != nil {
			return nil, err
		}
		return newGoogleTranscriber(key, cfg), nil
	case model.ProviderQwen:
		key, err := f.resolveKey(cfg, f.creds.Qwen)
		if err != nil {
			return nil, err
		}
		return newQwenTranscriber(key, cfg), nil
	default:
		return nil, Permanent(string(cfg.Provider), "configure",
			fmt.Errorf("unsupported transcription provider: %s", cfg.Provider))
	}
}

// Summarizer returns the summarization strategy for cfg.
func (f *Factory) Summarizer(cfg *model.ModelConfig) (Summarizer, error) {
	if cfg.ModelType != model.ModelTypeSummarization {
		return nil, Permanent(string(cfg.Provider), "configure",
			fmt.Errorf("model %q is not a summarization model", cfg.Name))
	}

	switch cfg.Provider {
	case model.ProviderOpenAI:
		key, err := f.resolveKey(cfg, f.creds.OpenAI)
		if err != nil {
			return nil, err
		}
		return newOpenAISummarizer(key, cfg), nil
	case model.ProviderAnthropic:
		key, err := f.resolveKey(cfg, f.creds.Anthropic)
		if err != nil {
			return nil, err
		}
		return newAnthropicSummarizer(key, cfg), nil
	case model.ProviderQwen:
		key, err := f.resolveKey(cfg, f.creds.Qwen)
		if err != nil {
			return nil, err
		}
		return newQwenSummarizer(key, cfg), nil
	default:
		return nil, Permanent(string(cfg.Provider), "configure",
			fmt.Errorf("unsupported summarization provider: %s", cfg.Provider))
	}
}

// resolveKey prefers the per-model key over the environment key. A missing
// key is a permanent configuration failure.
func (f *Factory) resolveKey(cfg *model.ModelConfig, envKey string) (string, error) {
	if cfg.APIKey != nil && *cfg.APIKey != "" {
		return *cfg.APIKey, nil
	}
	if envKey != "" {
		return envKey, nil
	}
	return "", Permanent(string(cfg.Provider), "configure",
		fmt.Errorf("no API key configured for model %q", cfg.Name))
}
