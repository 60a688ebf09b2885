package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime settings, loaded from environment variables.
type Config struct {
	Port        string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	UploadDir         string
	AllowedExtensions []string
	ModelSeedPath     string

	TranscriptionWorkers int
	SummarizationWorkers int
	MaxRetries           int
	RetryDelay           time.Duration
	JobTimeout           time.Duration
	JobSoftTimeout       time.Duration

	LogLevel  string
	LogFormat string

	OpenAIKey     string
	AnthropicKey  string
	ElevenLabsKey string
	GoogleKey     string
	QwenKey       string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "data/scribber.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		UploadDir:         getEnv("UPLOAD_DIR", "uploads"),
		AllowedExtensions: splitList(getEnv("ALLOWED_EXTENSIONS", "mp3,wav,m4a,ogg,flac,webm")),
		ModelSeedPath:     getEnv("MODEL_SEED_PATH", "configs/models.yaml"),

		TranscriptionWorkers: getEnvInt("TRANSCRIPTION_WORKERS", 2),
		SummarizationWorkers: getEnvInt("SUMMARIZATION_WORKERS", 2),
		MaxRetries:           getEnvInt("JOB_MAX_RETRIES", 3),
		RetryDelay:           getEnvDuration("JOB_RETRY_DELAY", time.Minute),
		JobTimeout:           getEnvDuration("JOB_TIMEOUT", time.Hour),
		JobSoftTimeout:       getEnvDuration("JOB_SOFT_TIMEOUT", 55*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:  os.Getenv("ANTHROPIC_API_KEY"),
		ElevenLabsKey: os.Getenv("ELEVENLABS_API_KEY"),
		GoogleKey:     os.Getenv("GOOGLE_API_KEY"),
		QwenKey:       os.Getenv("QWEN_API_KEY"),
	}

	if cfg.TranscriptionWorkers < 1 || cfg.SummarizationWorkers < 1 {
		return nil, fmt.Errorf("worker counts must be at least 1")
	}
	if cfg.JobSoftTimeout >= cfg.JobTimeout {
		return nil, fmt.Errorf("JOB_SOFT_TIMEOUT (%s) must be shorter than JOB_TIMEOUT (%s)",
			cfg.JobSoftTimeout, cfg.JobTimeout)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
