package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"scribber/internal/model"
)

const googleSTTURL = "https://speech.googleapis.com/v1/speech:recognize"

// googleTranscriber transcribes audio with the Google Cloud
// Speech-to-Text REST API using API key authentication.
type googleTranscriber struct {
	apiKey         string
	url            string
	languageCode   string
	modelName      string
	pricePerMinute float64
	httpClient     *http.Client
}

func newGoogleTranscriber(apiKey string, cfg *model.ModelConfig) *googleTranscriber {
	return &googleTranscriber{
		apiKey:         apiKey,
		url:            cfg.StringOption("api_url", googleSTTURL),
		languageCode:   cfg.StringOption("language_code", "en-US"),
		modelName:      cfg.StringOption("model", "latest_long"),
		pricePerMinute: floatOption(cfg.Options(), "price_per_minute", 0.024),
		httpClient:     &http.Client{Timeout: 10 * time.Minute},
	}
}

func (t *googleTranscriber) Name() string { return "google" }

type googleSTTRequest struct {
	Config googleSTTConfig `json:"config"`
	Audio  googleSTTAudio  `json:"audio"`
}

type googleSTTConfig struct {
	LanguageCode               string `json:"languageCode"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
	Model                      string `json:"model,omitempty"`
}

type googleSTTAudio struct {
	Content string `json:"content"` // base64 encoded
}

type googleSTTResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
	TotalBilledTime string `json:"totalBilledTime,omitempty"`
	Error           *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (t *googleTranscriber) Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) (*TranscriptionResult, error) {
	audioBytes, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, Permanent(t.Name(), "transcribe", fmt.Errorf("audio file unreadable: %w", err))
	}

	lang := t.languageCode
	if opts.Language != "" {
		lang = opts.Language
	}

	reqBody := googleSTTRequest{
		Config: googleSTTConfig{
			LanguageCode:               lang,
			EnableAutomaticPunctuation: true,
			Model:                      t.modelName,
		},
		Audio: googleSTTAudio{
			Content: base64.StdEncoding.EncodeToString(audioBytes),
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, Permanent(t.Name(), "transcribe", err)
	}

	url := t.url + "?key=" + t.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, Permanent(t.Name(), "transcribe", err)
	}
	req.Header.Set("Content-Type", "application/json")

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

	var parsed googleSTTResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, Permanent(t.Name(), "transcribe", fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error != nil {
		return nil, wrapHTTPStatus(t.Name(), "transcribe", parsed.Error.Code, parsed.Error.Message)
	}

	var sb strings.Builder
	var confidence *float64
	for _, r := range parsed.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		sb.WriteString(alt.Transcript)
		if confidence == nil && alt.Confidence > 0 {
			c := alt.Confidence
			confidence = &c
		}
	}

	result := &TranscriptionResult{
		Text:       strings.TrimSpace(sb.String()),
		Language:   lang,
		Confidence: confidence,
	}
	// totalBilledTime comes back as a duration string like "32s".
	if parsed.TotalBilledTime != "" {
		if d, err := time.ParseDuration(parsed.TotalBilledTime); err == nil {
			secs := d.Seconds()
			result.DurationSeconds = &secs
		}
	}
	return result, nil
}

func (t *googleTranscriber) EstimateCost(durationSeconds float64) float64 {
	return durationSeconds / 60.0 * t.pricePerMinute
}
