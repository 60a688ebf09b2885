package provider

import (
	"errors"
	"net/http"
	"testing"

	"scribber/internal/model"
)

func testCreds() Credentials {
	return Credentials{
		OpenAI:     "sk-env",
		Anthropic:  "ak-env",
		ElevenLabs: "el-env",
		Google:     "g-env",
		Qwen:       "q-env",
	}
}

func transcriptionCfg(p model.ModelProvider) *model.ModelConfig {
	return &model.ModelConfig{
		Name: "m", Provider: p, ModelType: model.ModelTypeTranscription, IsActive: true,
	}
}

func summarizationCfg(p model.ModelProvider) *model.ModelConfig {
	return &model.ModelConfig{
		Name: "m", Provider: p, ModelType: model.ModelTypeSummarization, IsActive: true,
	}
}

func TestFactoryTranscribers(t *testing.T) {
	f := NewFactory(testCreds())
	for _, p := range []model.ModelProvider{
		model.ProviderOpenAI, model.ProviderElevenLabs, model.ProviderGoogle, model.ProviderQwen,
	} {
		tr, err := f.Transcriber(transcriptionCfg(p))
		if err != nil {
			t.Errorf("Transcriber(%s): %v", p, err)
			continue
		}
		if tr == nil {
			t.Errorf("Transcriber(%s) = nil", p)
		}
	}
}

func TestFactorySummarizers(t *testing.T) {
	f := NewFactory(testCreds())
	for _, p := range []model.ModelProvider{
		model.ProviderOpenAI, model.ProviderAnthropic, model.ProviderQwen,
	} {
		s, err := f.Summarizer(summarizationCfg(p))
		if err != nil {
			t.Errorf("Summarizer(%s): %v", p, err)
			continue
		}
		if s == nil {
			t.Errorf("Summarizer(%s) = nil", p)
		}
	}
}

func TestFactoryRejectsTypeMismatch(t *testing.T) {
	f := NewFactory(testCreds())

	if _, err := f.Transcriber(summarizationCfg(model.ProviderOpenAI)); err == nil {
		t.Error("Transcriber accepted a summarization model")
	}
	if _, err := f.Summarizer(transcriptionCfg(model.ProviderOpenAI)); err == nil {
		t.Error("Summarizer accepted a transcription model")
	}
}

func TestFactoryRejectsUnsupportedProvider(t *testing.T) {
	f := NewFactory(testCreds())

	_, err := f.Transcriber(transcriptionCfg(model.ModelProvider("aws")))
	if err == nil {
		t.Fatal("Transcriber accepted unsupported provider")
	}
	if IsRetryable(err) {
		t.Error("configuration error must not be retryable")
	}
}

func TestFactoryMissingKey(t *testing.T) {
	f := NewFactory(Credentials{})

	_, err := f.Transcriber(transcriptionCfg(model.ProviderOpenAI))
	if err == nil {
		t.Fatal("Transcriber succeeded without any API key")
	}
	if IsRetryable(err) {
		t.Error("missing key must not be retryable")
	}
}

func TestFactoryPrefersModelKey(t *testing.T) {
	f := NewFactory(Credentials{})

	cfg := transcriptionCfg(model.ProviderOpenAI)
	key := "sk-row"
	cfg.APIKey = &key
	if _, err := f.Transcriber(cfg); err != nil {
		t.Fatalf("Transcriber with per-model key: %v", err)
	}
}

func TestErrorRetryability(t *testing.T) {
	transient := Transient("openai", "transcribe", errors.New("rate limited"))
	if !IsRetryable(transient) {
		t.Error("Transient error not retryable")
	}

	permanent := Permanent("openai", "transcribe", errors.New("bad file"))
	if IsRetryable(permanent) {
		t.Error("Permanent error reported retryable")
	}

	if IsRetryable(errors.New("plain")) {
		t.Error("plain error reported retryable")
	}
}

func TestRetryableStatus(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		if got := retryableStatus(tt.code); got != tt.want {
			t.Errorf("retryableStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestBuildSummaryPrompt(t *testing.T) {
	p := buildSummaryPrompt("the transcript", SummarizeOptions{Style: StyleBrief, MaxLength: 100})
	if p == "" {
		t.Fatal("empty prompt")
	}

	// Unknown styles fall back to the professional template.
	q := buildSummaryPrompt("the transcript", SummarizeOptions{Style: "haiku"})
	if q == "" {
		t.Fatal("empty prompt for unknown style")
	}
}
