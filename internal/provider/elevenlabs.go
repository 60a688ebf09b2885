package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"scribber/internal/model"
)

const elevenLabsDefaultURL = "https://api.elevenlabs.io/v1/speech-to-text"

// elevenLabsTranscriber transcribes audio with the ElevenLabs
// speech-to-text API.
type elevenLabsTranscriber struct {
	apiKey         string
	url            string
	modelID        string
	pricePerMinute float64
	httpClient     *http.Client
}

func newElevenLabsTranscriber(apiKey string, cfg *model.ModelConfig) *elevenLabsTranscriber {
	return &elevenLabsTranscriber{
		apiKey:         apiKey,
		url:            cfg.StringOption("api_url", elevenLabsDefaultURL),
		modelID:        cfg.StringOption("model", "scribe_v1"),
		pricePerMinute: floatOption(cfg.Options(), "price_per_minute", 0.0067),
		httpClient:     &http.Client{Timeout: 30 * time.Minute},
	}
}

func (t *elevenLabsTranscriber) Name() string { return "elevenlabs" }

// elevenLabsResponse is the subset of the API response we consume.
type elevenLabsResponse struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
	Words        []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

func (t *elevenLabsTranscriber) Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) (*TranscriptionResult, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, Permanent(t.Name(), "transcribe", fmt.Errorf("audio file unreadable: %w", err))
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, Permanent(t.Name(), "transcribe", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, Permanent(t.Name(), "transcribe", err)
	}
	if err := w.WriteField("model_id", t.modelID); err != nil {
		return nil, Permanent(t.Name(), "transcribe", err)
	}
	if opts.Language != "" {
		if err := w.WriteField("language_code", opts.Language); err != nil {
			return nil, Permanent(t.Name(), "transcribe", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, Permanent(t.Name(), "transcribe", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, &buf)
	if err != nil {
		return nil, Permanent(t.Name(), "transcribe", err)
	}
	req.Header.Set("xi-api-key", t.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, Transient(t.Name(), "transcribe", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient(t.Name(), "transcribe", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, wrapHTTPStatus(t.Name(), "transcribe", resp.StatusCode, string(body))
	}

	var parsed elevenLabsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, Permanent(t.Name(), "transcribe", fmt.Errorf("decode response: %w", err))
	}

	result := &TranscriptionResult{
		Text:     parsed.Text,
		Language: parsed.LanguageCode,
	}
	// The API reports word timings rather than a total duration; the end
	// of the last word is close enough for usage accounting.
	if n := len(parsed.Words); n > 0 {
		d := parsed.Words[n-1].End
		result.DurationSeconds = &d
	}
	return result, nil
}

func (t *elevenLabsTranscriber) EstimateCost(durationSeconds float64) float64 {
	return durationSeconds / 60.0 * t.pricePerMinute
}
