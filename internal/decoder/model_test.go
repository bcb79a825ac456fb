package decoder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestModel_Validate(t *testing.T) {
	m := testModel(t)
	if err := m.Validate(); err != nil {
		t.Fatalf("Expected valid model, got %v", err)
	}

	bad := *m
	bad.SampleRate = 44100
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for unsupported sample rate")
	}

	bad = *m
	bad.Words = nil
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for empty vocabulary")
	}

	bad = *m
	bad.Words = append([]WordEntry{}, m.Words...)
	bad.Words[1].MinFrames = 10
	bad.Words[1].MaxFrames = 5
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for inverted duration bounds")
	}

	bad = *m
	bad.Words = append([]WordEntry{}, m.Words...)
	bad.Words[1].MaxFrames = len(bad.Words[1].Template) - 1
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for untraversable template")
	}

	bad = *m
	bad.Decode.Beam = 0
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for zero beam")
	}
}

func TestLoad(t *testing.T) {
	m := testModel(t)
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Failed to marshal model: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write model file: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.SampleRate != m.SampleRate {
		t.Errorf("Expected sample rate %d, got %d", m.SampleRate, loaded.SampleRate)
	}
	if len(loaded.Words) != len(m.Words) {
		t.Errorf("Expected %d words, got %d", len(m.Words), len(loaded.Words))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Expected error for missing model file")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to write model file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed model file")
	}
}

func TestModel_WordText(t *testing.T) {
	m := testModel(t)
	if text := m.WordText(1); text != "turn" {
		t.Errorf("Expected word text 'turn', got %q", text)
	}
	if text := m.WordText(-1); text != "" {
		t.Errorf("Expected empty text for out-of-range id, got %q", text)
	}
	if !m.IsSilence(0) {
		t.Error("Expected word 0 to be silence")
	}
	if m.IsSilence(1) {
		t.Error("Expected word 1 to be speech")
	}
}

func TestModel_FrameDuration(t *testing.T) {
	m := testModel(t)
	if d := m.FrameDuration(); d != 0.02 {
		t.Errorf("Expected 20ms frame duration, got %f", d)
	}
}
