package model

import (
	"encoding/json"
	"time"
)

// ModelProvider identifies the vendor backing a model.
type ModelProvider string

const (
	ProviderOpenAI     ModelProvider = "openai"
	ProviderAnthropic  ModelProvider = "anthropic"
	ProviderGoogle     ModelProvider = "google"
	ProviderElevenLabs ModelProvider = "elevenlabs"
	ProviderQwen       ModelProvider = "qwen"
)

// ModelType is the operation kind a model performs.
type ModelType string

const (
	ModelTypeTranscription ModelType = "transcription"
	ModelTypeSummarization ModelType = "summarization"
)

// ModelConfig describes one selectable provider/model combination.
// Consumed read-only by the job processor; managed out of band.
type ModelConfig struct {
	ID          int64         `json:"id" gorm:"primaryKey"`
	Name        string        `json:"name" gorm:"size:100;uniqueIndex;not null"`
	DisplayName string        `json:"display_name" gorm:"size:255;not null"`
	Provider    ModelProvider `json:"provider" gorm:"size:20;index;not null"`
	ModelType   ModelType     `json:"model_type" gorm:"size:20;index;not null"`
	APIEndpoint *string       `json:"api_endpoint,omitempty" gorm:"size:500"`
	APIKey      *string       `json:"-" gorm:"column:api_key;type:text"`
	// No column defaults here: gorm omits zero-valued fields on insert
	// when a default tag is present, which would turn IsActive: false
	// into true. Callers set IsActive explicitly.
	IsActive  bool `json:"is_active" gorm:"not null"`
	IsDefault bool `json:"is_default" gorm:"not null"`
	ConfigJSON  *string       `json:"-" gorm:"type:text"`
	Description *string       `json:"description,omitempty" gorm:"type:text"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Options decodes the provider-specific config blob. Returns an empty map
// when no blob is set or it cannot be parsed.
func (m *ModelConfig) Options() map[string]any {
	opts := make(map[string]any)
	if m.ConfigJSON == nil || *m.ConfigJSON == "" {
		return opts
	}
	if err := json.Unmarshal([]byte(*m.ConfigJSON), &opts); err != nil {
		return map[string]any{}
	}
	return opts
}

// StringOption returns a string value from the config blob, or fallback.
func (m *ModelConfig) StringOption(key, fallback string) string {
	if v, ok := m.Options()[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
