package config

import (
	"testing"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("MODEL_PATH", "/models/test.json")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.SampleRate != 8000 {
		t.Errorf("Expected default sample rate 8000, got %d", cfg.SampleRate)
	}
	if cfg.FrameDurationMs != 20 {
		t.Errorf("Expected default frame duration 20ms, got %d", cfg.FrameDurationMs)
	}
	if cfg.PartialMinFrames != 50 {
		t.Errorf("Expected default partial min frames 50, got %d", cfg.PartialMinFrames)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.LogLevel)
	}
	if !cfg.MetricsEnabled {
		t.Error("Expected metrics enabled by default")
	}
}

func TestLoadFromEnv_MissingModelPath(t *testing.T) {
	t.Setenv("MODEL_PATH", "")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error when MODEL_PATH is not set")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("MODEL_PATH", "/models/test.json")
	t.Setenv("SAMPLE_RATE", "16000")
	t.Setenv("VAD_ENERGY_THRESHOLD", "750.5")
	t.Setenv("NO_INPUT_TIMEOUT_MS", "3000")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", cfg.SampleRate)
	}
	if cfg.VADEnergyThreshold != 750.5 {
		t.Errorf("Expected VAD threshold 750.5, got %f", cfg.VADEnergyThreshold)
	}
	if cfg.NoInputTimeoutMs != 3000 {
		t.Errorf("Expected no-input timeout 3000ms, got %d", cfg.NoInputTimeoutMs)
	}
}

func TestValidate_InvalidSampleRate(t *testing.T) {
	cfg := &Config{
		ModelPath:       "/models/test.json",
		SampleRate:      44100,
		FrameDurationMs: 20,
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unsupported sample rate")
	}
}

func TestFrameSize(t *testing.T) {
	cfg := &Config{SampleRate: 8000, FrameDurationMs: 20}
	if size := cfg.FrameSize(); size != 160 {
		t.Errorf("Expected 160 samples per frame, got %d", size)
	}

	cfg = &Config{SampleRate: 16000, FrameDurationMs: 20}
	if size := cfg.FrameSize(); size != 320 {
		t.Errorf("Expected 320 samples per frame, got %d", size)
	}
}
