package decoder

import (
	"encoding/json"
	"fmt"
	"os"
)

// FeatureDim is the size of one acoustic feature vector
const FeatureDim = 4

// FeatureVec is one frame of acoustic features:
// log energy, zero-crossing rate, low-band energy, high-band energy
type FeatureVec [FeatureDim]float64

// DecodeConfig holds search parameters
type DecodeConfig struct {
	Beam         float64 `json:"beam"`         // Prune tokens worse than best + beam
	MaxActive    int     `json:"maxActive"`    // Token count cap per frame
	LatticeScale float64 `json:"latticeScale"` // Score-to-posterior scale for confidences
	WordPenalty  float64 `json:"wordPenalty"`  // Cost of entering a new word
}

// EndpointConfig holds the model-defined endpoint rules
type EndpointConfig struct {
	MinTrailingSilenceFrames int `json:"minTrailingSilenceFrames"` // Silence run after a decoded word
	MaxUtteranceFrames       int `json:"maxUtteranceFrames"`       // Hard utterance length cap
}

// SilenceConfig controls voice-activity-conditioned frame re-weighting
type SilenceConfig struct {
	EnergyFloor float64 `json:"energyFloor"` // Log-energy below this marks a silence frame
	Weight      float64 `json:"weight"`      // Weight applied to silence frames
}

// FeatureConfig holds front-end parameters
type FeatureConfig struct {
	FrameSize    int `json:"frameSize"`    // Samples per feature frame
	CMNMinFrames int `json:"cmnMinFrames"` // Frames of statistics before mean normalization engages
}

// WordEntry is one vocabulary word with its acoustic template and duration bounds.
// The duration bounds play the role of a transition model during alignment.
type WordEntry struct {
	Word      string       `json:"word"`
	Template  []FeatureVec `json:"template"`
	MinFrames int          `json:"minFrames"`
	MaxFrames int          `json:"maxFrames"`
	Silence   bool         `json:"silence,omitempty"`
}

// Model is the immutable acoustic/language model shared by all sessions.
// It is loaded once at startup and never mutated.
type Model struct {
	SampleRate int            `json:"sampleRate"`
	Feature    FeatureConfig  `json:"feature"`
	Decode     DecodeConfig   `json:"decode"`
	Endpoint   EndpointConfig `json:"endpoint"`
	Silence    SilenceConfig  `json:"silence"`
	Words      []WordEntry    `json:"words"`
}

// Load reads a model from a JSON model file
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var model Model
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to parse model file: %w", err)
	}

	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}

	return &model, nil
}

// Validate checks model invariants
func (m *Model) Validate() error {
	if m.SampleRate != 8000 && m.SampleRate != 16000 {
		return fmt.Errorf("sample rate must be 8000 or 16000, got %d", m.SampleRate)
	}
	if m.Feature.FrameSize <= 0 {
		return fmt.Errorf("frame size must be positive, got %d", m.Feature.FrameSize)
	}
	if len(m.Words) == 0 {
		return fmt.Errorf("model has no vocabulary")
	}
	for i, w := range m.Words {
		if len(w.Template) == 0 {
			return fmt.Errorf("word %d (%q) has empty template", i, w.Word)
		}
		if w.MinFrames <= 0 || w.MaxFrames < w.MinFrames {
			return fmt.Errorf("word %d (%q) has invalid duration bounds [%d, %d]", i, w.Word, w.MinFrames, w.MaxFrames)
		}
		if w.MaxFrames < len(w.Template) {
			return fmt.Errorf("word %d (%q) cannot traverse its template within %d frames", i, w.Word, w.MaxFrames)
		}
	}
	if m.Decode.Beam <= 0 {
		return fmt.Errorf("decode beam must be positive")
	}
	if m.Decode.MaxActive <= 0 {
		return fmt.Errorf("max active tokens must be positive")
	}
	if m.Endpoint.MaxUtteranceFrames <= 0 {
		return fmt.Errorf("max utterance frames must be positive")
	}
	return nil
}

// FrameDuration returns the duration of one feature frame in seconds
func (m *Model) FrameDuration() float64 {
	return float64(m.Feature.FrameSize) / float64(m.SampleRate)
}

// WordText returns the text of word id, or empty for out-of-range ids
func (m *Model) WordText(id int32) string {
	if id < 0 || int(id) >= len(m.Words) {
		return ""
	}
	return m.Words[id].Word
}

// IsSilence reports whether word id is a silence entry
func (m *Model) IsSilence(id int32) bool {
	if id < 0 || int(id) >= len(m.Words) {
		return true
	}
	return m.Words[id].Silence
}
