package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.TranscriptionWorkers != 2 || cfg.SummarizationWorkers != 2 {
		t.Errorf("worker counts = %d/%d, want 2/2", cfg.TranscriptionWorkers, cfg.SummarizationWorkers)
	}
	if cfg.JobSoftTimeout >= cfg.JobTimeout {
		t.Errorf("soft timeout %s not below hard timeout %s", cfg.JobSoftTimeout, cfg.JobTimeout)
	}
	if len(cfg.AllowedExtensions) == 0 {
		t.Error("no allowed extensions")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("JOB_MAX_RETRIES", "5")
	t.Setenv("JOB_RETRY_DELAY", "250ms")
	t.Setenv("ALLOWED_EXTENSIONS", "MP3, Wav")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.RetryDelay != 250*time.Millisecond {
		t.Errorf("RetryDelay = %s", cfg.RetryDelay)
	}
	if len(cfg.AllowedExtensions) != 2 || cfg.AllowedExtensions[0] != "mp3" || cfg.AllowedExtensions[1] != "wav" {
		t.Errorf("AllowedExtensions = %v, want lowercased [mp3 wav]", cfg.AllowedExtensions)
	}
}

func TestLoadRejectsInvertedTimeouts(t *testing.T) {
	t.Setenv("JOB_TIMEOUT", "1m")
	t.Setenv("JOB_SOFT_TIMEOUT", "2m")

	if _, err := Load(); err == nil {
		t.Fatal("Load accepted soft timeout above hard timeout")
	}
}
